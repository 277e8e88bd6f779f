package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentProvider identifies the external gateway.
type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderKhalti PaymentProvider = "khalti"
)

func (p PaymentProvider) Valid() bool {
	return p == ProviderStripe || p == ProviderKhalti
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Final reports whether no further gateway verification can change the status.
func (s PaymentStatus) Final() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentCancelled
}

// MembershipPlan is a purchasable membership tier.
// Price is in the currency's minor unit (cents, paisa).
type MembershipPlan struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Price        int64              `bson:"price" json:"price"`
	Currency     string             `bson:"currency" json:"currency"` // ISO 4217, lower-case ("usd", "npr")
	DurationDays int                `bson:"durationDays" json:"durationDays"`
	Active       bool               `bson:"active" json:"active"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Payment is one attempt to buy a MembershipPlan through a gateway.
type Payment struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID              primitive.ObjectID `bson:"userId" json:"userId"`
	PlanID              primitive.ObjectID `bson:"planId" json:"planId"`
	PlanName            string             `bson:"planName" json:"planName"`
	Provider            PaymentProvider    `bson:"provider" json:"provider"`
	Amount              int64              `bson:"amount" json:"amount"`
	Currency            string             `bson:"currency" json:"currency"`
	Status              PaymentStatus      `bson:"status" json:"status"`
	ExternalRef         string             `bson:"externalRef,omitempty" json:"externalRef,omitempty"` // Stripe session id or Khalti pidx
	RedirectURL         string             `bson:"redirectUrl,omitempty" json:"redirectUrl,omitempty"`
	FailReason          string             `bson:"failReason,omitempty" json:"failReason,omitempty"`
	CompletedAt         *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	MembershipAppliedAt *time.Time         `bson:"membershipAppliedAt,omitempty" json:"membershipAppliedAt,omitempty"` // nil until the purchased membership is granted
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AwaitsMembership reports whether the payment is completed but its
// membership has not been granted yet.
func (p *Payment) AwaitsMembership() bool {
	return p.Status == PaymentCompleted && p.MembershipAppliedAt == nil
}
