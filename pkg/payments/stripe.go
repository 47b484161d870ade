package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/TrustFinAI/vfin-platform/pkg/observability"
)

// StripeProvider implements Provider against the Stripe API
type StripeProvider struct {
	secretKey     string
	webhookSecret string
	logger        *logrus.Logger
	metrics       *observability.Metrics

	initOnce sync.Once
	sc       *client.API
}

// NewStripeProvider creates a provider bound to the given API key and webhook
// signing secret. The underlying client is initialized lazily on first use.
func NewStripeProvider(secretKey, webhookSecret string, logger *logrus.Logger, metrics *observability.Metrics) *StripeProvider {
	return &StripeProvider{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		logger:        logger,
		metrics:       metrics,
	}
}

func (p *StripeProvider) api() *client.API {
	p.initOnce.Do(func() {
		p.sc = &client.API{}
		p.sc.Init(p.secretKey, nil)
	})
	return p.sc
}

func (p *StripeProvider) observe(operation string, err error) {
	if p.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.metrics.ProviderCallsTotal.WithLabelValues(operation, result).Inc()
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, displayName string) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(displayName),
	}
	cust, err := p.api().Customers.New(params)
	p.observe("create_customer", err)
	if err != nil {
		return "", &UpstreamError{Op: "create customer", Err: err}
	}
	p.logger.WithFields(logrus.Fields{
		"customer_ref": cust.ID,
		"email":        email,
	}).Info("Created billing customer")
	return cust.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, customerRef, priceRef, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		Customer:           stripe.String(customerRef),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceRef),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(successURL),
		CancelURL:           stripe.String(cancelURL),
	}
	sess, err := p.api().CheckoutSessions.New(params)
	p.observe("create_checkout_session", err)
	if err != nil {
		return "", &UpstreamError{Op: "create checkout session", Err: err}
	}
	return sess.URL, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := p.api().BillingPortalSessions.New(params)
	p.observe("create_portal_session", err)
	if err != nil {
		return "", &UpstreamError{Op: "create portal session", Err: err}
	}
	return sess.URL, nil
}

func (p *StripeProvider) RetrieveSubscription(ctx context.Context, subscriptionRef string) (*SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	sub, err := p.api().Subscriptions.Get(subscriptionRef, params)
	p.observe("retrieve_subscription", err)
	if err != nil {
		return nil, &UpstreamError{Op: "retrieve subscription", Err: err}
	}
	snap, err := snapshotFromSubscription(sub)
	if err != nil {
		return nil, &UpstreamError{Op: "retrieve subscription", Err: err}
	}
	return snap, nil
}

// VerifyWebhook authenticates the raw body against the Stripe-Signature
// header and maps the event onto the variants the reconciler understands.
func (p *StripeProvider) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return eventFromStripe(event)
}

func eventFromStripe(event stripe.Event) (*Event, error) {
	out := &Event{
		ID:   event.ID,
		Type: event.Type,
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("payments: decode checkout session: %w", err)
		}
		// A checkout without a subscription is a one-time payment; there is
		// nothing to reconcile, acknowledge it as a no-op.
		if sess.Subscription == nil {
			out.Kind = EventIgnored
			return out, nil
		}
		out.Kind = EventCheckoutCompleted
		out.SubscriptionID = sess.Subscription.ID
		if sess.Customer != nil {
			out.CustomerRef = sess.Customer.ID
		}
		if out.CustomerRef == "" {
			return nil, fmt.Errorf("payments: checkout session %s missing customer reference", sess.ID)
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("payments: decode subscription: %w", err)
		}
		snap, err := snapshotFromSubscription(&sub)
		if err != nil {
			return nil, err
		}
		if event.Type == "customer.subscription.deleted" {
			out.Kind = EventSubscriptionDeleted
		} else {
			out.Kind = EventSubscriptionUpdated
		}
		out.CustomerRef = snap.CustomerRef
		out.SubscriptionID = snap.ID
		out.Snapshot = snap

	default:
		out.Kind = EventIgnored
	}

	return out, nil
}

func snapshotFromSubscription(sub *stripe.Subscription) (*SubscriptionSnapshot, error) {
	if sub.Customer == nil {
		return nil, fmt.Errorf("payments: subscription %s has no customer reference", sub.ID)
	}
	snap := &SubscriptionSnapshot{
		ID:          sub.ID,
		CustomerRef: sub.Customer.ID,
		Status:      string(sub.Status),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		snap.PriceRef = sub.Items.Data[0].Price.ID
	}
	if snap.PriceRef == "" {
		return nil, fmt.Errorf("payments: subscription %s has no price reference", sub.ID)
	}
	if sub.CurrentPeriodEnd > 0 {
		snap.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	return snap, nil
}
