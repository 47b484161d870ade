// Package payments isolates all communication with the external payment
// provider: outbound API calls (customers, checkout and portal sessions,
// subscription retrieval) and inbound signed-webhook verification.
package payments

import (
	"context"
	"time"
)

// EventKind identifies the webhook event variants the reconciler consumes.
// Everything else arrives as EventIgnored and is acknowledged without action.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout.session.completed"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventIgnored             EventKind = "ignored"
)

// Event is the tagged variant extracted from a verified webhook payload.
// Field presence depends on the kind: checkout events carry only references,
// subscription events carry a full snapshot.
type Event struct {
	ID             string
	Kind           EventKind
	Type           string // raw provider event type, for logging
	CustomerRef    string
	SubscriptionID string

	// Snapshot is set for subscription-updated and subscription-deleted
	// events, whose payload is the subscription object itself.
	Snapshot *SubscriptionSnapshot
}

// SubscriptionSnapshot is the provider's view of one subscription
type SubscriptionSnapshot struct {
	ID               string
	CustomerRef      string
	Status           string
	PriceRef         string
	CurrentPeriodEnd time.Time
}

// Provider abstracts the external payment processor
type Provider interface {
	// CreateCustomer registers a billing customer for a new tenant.
	// Failure aborts tenant registration.
	CreateCustomer(ctx context.Context, email, displayName string) (string, error)

	// CreateCheckoutSession starts a subscription checkout and returns the
	// redirect URL.
	CreateCheckoutSession(ctx context.Context, customerRef, priceRef, successURL, cancelURL string) (string, error)

	// CreatePortalSession opens the billing self-service portal and returns
	// the redirect URL.
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error)

	// RetrieveSubscription fetches the full subscription object, used when a
	// checkout-completed event carries only a reference.
	RetrieveSubscription(ctx context.Context, subscriptionRef string) (*SubscriptionSnapshot, error)

	// VerifyWebhook checks the signature over the raw, unparsed body and
	// extracts the event variant. Returns ErrSignatureInvalid on mismatch.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}
