package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus type for trainee assignment lifecycle
type AssignmentStatus string

const (
	AssignmentActive AssignmentStatus = "active"
	AssignmentEnded  AssignmentStatus = "ended"
)

// TraineeAssignment links a trainer to a user. It is created when the
// trainer accepts a PlanRequest and ended when either side moves on.
type TraineeAssignment struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TrainerID primitive.ObjectID  `bson:"trainerId" json:"trainerId"`
	UserID    primitive.ObjectID  `bson:"userId" json:"userId"`
	RequestID *primitive.ObjectID `bson:"requestId,omitempty" json:"requestId,omitempty"` // the accepted PlanRequest, nil for admin assignments
	Kind      PlanRequestKind     `bson:"kind" json:"kind"`
	Status    AssignmentStatus    `bson:"status" json:"status"`
	StartedAt time.Time           `bson:"startedAt" json:"startedAt"`
	EndedAt   *time.Time          `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}
