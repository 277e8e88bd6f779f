package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanRequestKind says what the member wants from the trainer.
type PlanRequestKind string

const (
	RequestWorkout PlanRequestKind = "workout"
	RequestMeal    PlanRequestKind = "meal"
	RequestBoth    PlanRequestKind = "both"
)

func (k PlanRequestKind) Valid() bool {
	return k == RequestWorkout || k == RequestMeal || k == RequestBoth
}

// Covers reports whether a request of kind k entitles the trainer to author plans of kind pk.
func (k PlanRequestKind) Covers(pk PlanKind) bool {
	switch k {
	case RequestBoth:
		return true
	case RequestWorkout:
		return pk == PlanWorkout
	case RequestMeal:
		return pk == PlanMeal
	}
	return false
}

type PlanRequestStatus string

const (
	RequestPending   PlanRequestStatus = "pending"
	RequestAccepted  PlanRequestStatus = "accepted"
	RequestRejected  PlanRequestStatus = "rejected"
	RequestCancelled PlanRequestStatus = "cancelled"
)

// PlanRequest is a member asking a specific trainer to coach them.
type PlanRequest struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	TrainerID    primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	Kind         PlanRequestKind    `bson:"kind" json:"kind"`
	Goal         string             `bson:"goal,omitempty" json:"goal,omitempty"`
	Message      string             `bson:"message,omitempty" json:"message,omitempty"`
	Status       PlanRequestStatus  `bson:"status" json:"status"`
	RejectReason string             `bson:"rejectReason,omitempty" json:"rejectReason,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
