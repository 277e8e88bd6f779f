package payment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"alcyxob/gym-app/internal/domain"
)

const testWebhookSecret = "whsec_test"

func signedEvent(t *testing.T, eventType string, session map[string]any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]json.RawMessage{"object": raw},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestParseWebhookCompleted(t *testing.T) {
	g := NewStripeGateway("sk_test", testWebhookSecret, nil)
	payload, sig := signedEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": "pay-1",
		"payment_status":      "paid",
		"status":              "complete",
		"amount_total":        2500,
	})

	ev, err := g.ParseWebhook(payload, sig)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "cs_1", ev.SessionID)
	assert.Equal(t, "pay-1", ev.PaymentID)
	assert.Equal(t, domain.PaymentCompleted, ev.Verification.Status)
	assert.Equal(t, int64(2500), ev.Verification.Amount)
}

func TestParseWebhookExpired(t *testing.T) {
	g := NewStripeGateway("sk_test", testWebhookSecret, nil)
	payload, sig := signedEvent(t, "checkout.session.expired", map[string]any{
		"id": "cs_2", "object": "checkout.session", "payment_status": "unpaid", "status": "expired",
	})
	ev, err := g.ParseWebhook(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCancelled, ev.Verification.Status)
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	g := NewStripeGateway("sk_test", testWebhookSecret, nil)
	payload, sig := signedEvent(t, "customer.created", map[string]any{"id": "cus_1", "object": "customer"})
	ev, err := g.ParseWebhook(payload, sig)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseWebhookBadSignature(t *testing.T) {
	g := NewStripeGateway("sk_test", testWebhookSecret, nil)
	payload, _ := signedEvent(t, "checkout.session.completed", map[string]any{"id": "cs_1"})
	_, err := g.ParseWebhook(payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookWithoutSecret(t *testing.T) {
	g := NewStripeGateway("sk_test", "", nil)
	_, err := g.ParseWebhook([]byte(`{}`), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSessionVerification(t *testing.T) {
	assert.Equal(t, domain.PaymentCompleted, sessionVerification(&stripe.CheckoutSession{PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}).Status)
	assert.Equal(t, domain.PaymentPending, sessionVerification(&stripe.CheckoutSession{PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid, Status: stripe.CheckoutSessionStatusOpen}).Status)
	assert.Equal(t, domain.PaymentCancelled, sessionVerification(&stripe.CheckoutSession{Status: stripe.CheckoutSessionStatusExpired}).Status)
}
