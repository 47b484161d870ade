package payments

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

func testProvider() *StripeProvider {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewStripeProvider("sk_test_key", testWebhookSecret, logger, nil)
}

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func checkoutCompletedPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_checkout_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":           "cs_test_1",
				"object":       "checkout.session",
				"customer":     "cus_1",
				"subscription": "sub_1",
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestVerifyWebhookValidSignature(t *testing.T) {
	p := testProvider()
	payload := checkoutCompletedPayload(t)

	event, err := p.VerifyWebhook(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, "evt_checkout_1", event.ID)
	assert.Equal(t, EventCheckoutCompleted, event.Kind)
	assert.Equal(t, "cus_1", event.CustomerRef)
	assert.Equal(t, "sub_1", event.SubscriptionID)
	assert.Nil(t, event.Snapshot)
}

func TestVerifyWebhookRejectsWrongSecret(t *testing.T) {
	p := testProvider()
	payload := checkoutCompletedPayload(t)

	_, err := p.VerifyWebhook(payload, signPayload(t, payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifyWebhookRejectsTamperedBody(t *testing.T) {
	p := testProvider()
	payload := checkoutCompletedPayload(t)
	header := signPayload(t, payload, testWebhookSecret)

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = 'X'

	_, err := p.VerifyWebhook(tampered, header)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifyWebhookRejectsGarbageHeader(t *testing.T) {
	p := testProvider()
	payload := checkoutCompletedPayload(t)

	_, err := p.VerifyWebhook(payload, "not-a-signature")
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func subscriptionEvent(t *testing.T, eventType, status string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":       "sub_9",
		"object":   "subscription",
		"customer": "cus_9",
		"status":   status,
		"items": map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{
					"id":     "si_1",
					"object": "subscription_item",
					"price": map[string]interface{}{
						"id":     "price_growth",
						"object": "price",
					},
				},
			},
		},
		"current_period_end": 1767225600,
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_sub_1",
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestEventFromStripeSubscriptionUpdated(t *testing.T) {
	event, err := eventFromStripe(subscriptionEvent(t, "customer.subscription.updated", "active"))
	require.NoError(t, err)

	assert.Equal(t, EventSubscriptionUpdated, event.Kind)
	assert.Equal(t, "cus_9", event.CustomerRef)
	assert.Equal(t, "sub_9", event.SubscriptionID)
	require.NotNil(t, event.Snapshot)
	assert.Equal(t, "active", event.Snapshot.Status)
	assert.Equal(t, "price_growth", event.Snapshot.PriceRef)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), event.Snapshot.CurrentPeriodEnd)
}

func TestEventFromStripeSubscriptionDeleted(t *testing.T) {
	event, err := eventFromStripe(subscriptionEvent(t, "customer.subscription.deleted", "canceled"))
	require.NoError(t, err)

	assert.Equal(t, EventSubscriptionDeleted, event.Kind)
	assert.Equal(t, "canceled", event.Snapshot.Status)
}

func TestEventFromStripeIgnoresUnknownTypes(t *testing.T) {
	event, err := eventFromStripe(stripe.Event{
		ID:   "evt_other",
		Type: "invoice.paid",
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, event.Kind)
}

// A completed checkout without a subscription reference is a one-time
// payment, not a malformed event: it must be acknowledged as a no-op so the
// provider does not redeliver it forever.
func TestEventFromStripeOneTimePaymentCheckout(t *testing.T) {
	raw, err := json.Marshal(map[string]interface{}{
		"id":       "cs_test_2",
		"object":   "checkout.session",
		"customer": "cus_1",
	})
	require.NoError(t, err)

	event, err := eventFromStripe(stripe.Event{
		ID:   "evt_onetime",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, event.Kind)
}

func TestEventFromStripeCheckoutMissingCustomer(t *testing.T) {
	raw, err := json.Marshal(map[string]interface{}{
		"id":           "cs_test_3",
		"object":       "checkout.session",
		"subscription": "sub_1",
	})
	require.NoError(t, err)

	_, err = eventFromStripe(stripe.Event{
		ID:   "evt_bad",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	})
	assert.Error(t, err)
}

func TestSnapshotRequiresPrice(t *testing.T) {
	_, err := snapshotFromSubscription(&stripe.Subscription{
		ID:       "sub_no_price",
		Customer: &stripe.Customer{ID: "cus_1"},
		Status:   stripe.SubscriptionStatusActive,
	})
	assert.Error(t, err)
}
