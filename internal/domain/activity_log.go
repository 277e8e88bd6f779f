package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LogEntry is a single performed exercise or eaten food.
type LogEntry struct {
	Name     string   `bson:"name" json:"name"`
	Sets     *int     `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps     *int     `bson:"reps,omitempty" json:"reps,omitempty"`
	WeightKg *float64 `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	Quantity string   `bson:"quantity,omitempty" json:"quantity,omitempty"`
	Calories *int     `bson:"calories,omitempty" json:"calories,omitempty"`
}

// ActivityLog is what a member actually did on a given day.
type ActivityLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Kind      PlanKind           `bson:"kind" json:"kind"`
	Date      time.Time          `bson:"date" json:"date"` // truncated to the day, UTC
	Entries   []LogEntry         `bson:"entries" json:"entries"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// TotalCalories sums the calories of all entries that have them.
func (l *ActivityLog) TotalCalories() int {
	total := 0
	for _, e := range l.Entries {
		if e.Calories != nil {
			total += *e.Calories
		}
	}
	return total
}
