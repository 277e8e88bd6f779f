package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanKind separates workout plans from meal plans. Each kind is versioned independently.
type PlanKind string

const (
	PlanWorkout PlanKind = "workout"
	PlanMeal    PlanKind = "meal"
)

func (k PlanKind) Valid() bool {
	return k == PlanWorkout || k == PlanMeal
}

// PlanStatus is the lifecycle state of a PlanVersion.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanSubmitted PlanStatus = "submitted" // sent to the member, waiting for activation
	PlanActive    PlanStatus = "active"
	PlanInactive  PlanStatus = "inactive" // superseded by a newer active version
)

// PlanSource records who produced the content of a version.
type PlanSource string

const (
	SourceGeneric PlanSource = "generic"
	SourceTrainer PlanSource = "trainer"
	SourceAI      PlanSource = "ai"
)

// CanTransition reports whether a version may move from s to next.
// Inactive is terminal; a superseded plan is never revived, a new version is created instead.
func (s PlanStatus) CanTransition(next PlanStatus) bool {
	switch s {
	case PlanDraft:
		return next == PlanSubmitted || next == PlanActive
	case PlanSubmitted:
		return next == PlanActive || next == PlanDraft
	case PlanActive:
		return next == PlanInactive
	}
	return false
}

// PlanItem is one exercise or one food entry within a day.
type PlanItem struct {
	Name     string `bson:"name" json:"name"`
	Sets     *int   `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps     string `bson:"reps,omitempty" json:"reps,omitempty"` // e.g. "8-12", "AMRAP"
	Rest     string `bson:"rest,omitempty" json:"rest,omitempty"` // e.g. "60s"
	Quantity string `bson:"quantity,omitempty" json:"quantity,omitempty"`
	Calories *int   `bson:"calories,omitempty" json:"calories,omitempty"`
	Notes    string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// PlanDay groups items, e.g. "Monday - Upper body" or "Breakfast".
type PlanDay struct {
	Day   string     `bson:"day" json:"day"`
	Title string     `bson:"title,omitempty" json:"title,omitempty"`
	Items []PlanItem `bson:"items" json:"items"`
}

// PlanContent is the editable body of a version.
type PlanContent struct {
	Title string    `bson:"title" json:"title"`
	Notes string    `bson:"notes,omitempty" json:"notes,omitempty"`
	Days  []PlanDay `bson:"days" json:"days"`
}

// PlanVersion is a stored snapshot of a workout or meal plan for one member.
type PlanVersion struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	Kind        PlanKind            `bson:"kind" json:"kind"`
	Version     int                 `bson:"version" json:"version"` // 1-based, per user and kind
	Status      PlanStatus          `bson:"status" json:"status"`
	Source      PlanSource          `bson:"source" json:"source"`
	AuthorID    *primitive.ObjectID `bson:"authorId,omitempty" json:"authorId,omitempty"` // nil for generic plans
	Content     PlanContent         `bson:"content" json:"content"`
	ActivatedAt *time.Time          `bson:"activatedAt,omitempty" json:"activatedAt,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}
