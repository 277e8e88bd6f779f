// Package payment talks to the external payment gateways.
package payment

import (
	"context"
	"errors"

	"alcyxob/gym-app/internal/domain"
)

var (
	ErrNotConfigured       = errors.New("payment provider is not configured")
	ErrUnsupportedCurrency = errors.New("currency not supported by provider")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)

// CheckoutRequest describes what the member is paying for.
type CheckoutRequest struct {
	PaymentID     string
	Description   string
	Amount        int64 // minor units
	Currency      string
	CustomerName  string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Checkout is the gateway side of a newly created payment.
type Checkout struct {
	Ref         string // Stripe checkout session id or Khalti pidx
	RedirectURL string
}

// Verification is the gateway's view of a payment.
type Verification struct {
	Status domain.PaymentStatus
	Amount int64
	Reason string
}

// Gateway is implemented by every provider.
type Gateway interface {
	Provider() domain.PaymentProvider
	Initiate(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	Verify(ctx context.Context, ref string) (*Verification, error)
}
