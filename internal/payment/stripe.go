package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"alcyxob/gym-app/internal/domain"
)

// StripeGateway uses Stripe Checkout in payment mode.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway returns a gateway bound to key. A nil backends uses Stripe's live API.
func NewStripeGateway(key, webhookSecret string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		api:           client.New(key, backends),
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) Provider() domain.PaymentProvider { return domain.ProviderStripe }

func (g *StripeGateway) Initiate(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.PaymentID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("payment_id", req.PaymentID)
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe checkout session: %w", err)
	}
	return &Checkout{Ref: sess.ID, RedirectURL: sess.URL}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, ref string) (*Verification, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(ref, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving stripe checkout session: %w", err)
	}
	return sessionVerification(sess), nil
}

func sessionVerification(sess *stripe.CheckoutSession) *Verification {
	v := &Verification{Amount: sess.AmountTotal, Status: domain.PaymentPending}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		v.Status = domain.PaymentCompleted
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		v.Status = domain.PaymentCancelled
		v.Reason = "checkout session expired"
	}
	return v
}

// WebhookEvent is a verified Stripe event that concerns a checkout session.
type WebhookEvent struct {
	Type         string
	SessionID    string
	PaymentID    string
	Verification *Verification
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events. Other event types return a nil event and no error.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
	default:
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding checkout session: %w", err)
	}

	v := sessionVerification(&sess)
	if string(event.Type) == "checkout.session.async_payment_failed" {
		v.Status = domain.PaymentFailed
		v.Reason = "async payment failed"
	}
	return &WebhookEvent{
		Type:         string(event.Type),
		SessionID:    sess.ID,
		PaymentID:    sess.ClientReferenceID,
		Verification: v,
	}, nil
}
