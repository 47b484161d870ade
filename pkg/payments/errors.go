package payments

import (
	"errors"
	"fmt"
)

// ErrSignatureInvalid reports a webhook whose signature did not verify
// against the shared secret. Callers must respond with a client error so the
// provider does not retry forged or misconfigured deliveries.
var ErrSignatureInvalid = errors.New("payments: webhook signature invalid")

// UpstreamError wraps a failure from the payment provider's API. The wrapped
// error may contain request details and must not be echoed to end users.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("payments: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
