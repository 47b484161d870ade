package billing

import "fmt"

// UnknownCustomerError reports a webhook referencing a billing customer with
// no tenant row. This is usually a delivery race against registration, so
// callers should answer with a retryable server error.
type UnknownCustomerError struct {
	CustomerRef string
}

func (e *UnknownCustomerError) Error() string {
	return fmt.Sprintf("billing: no tenant for customer %s", e.CustomerRef)
}

// UnknownPriceTierError reports a subscription whose price has no catalog
// row. Retryable so a catalog seed or fix can land before redelivery.
type UnknownPriceTierError struct {
	PriceRef string
}

func (e *UnknownPriceTierError) Error() string {
	return fmt.Sprintf("billing: no tier for price %s", e.PriceRef)
}
