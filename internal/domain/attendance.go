package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendance is one gym visit. There is at most one record per user per day.
type Attendance struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	Day          string             `bson:"day" json:"day"` // YYYY-MM-DD in the gym's timezone
	CheckInAt    time.Time          `bson:"checkInAt" json:"checkInAt"`
	CheckOutAt   *time.Time         `bson:"checkOutAt,omitempty" json:"checkOutAt,omitempty"`
	TokenID      string             `bson:"tokenId" json:"-"` // jti of the QR token used to check in
	CheckOutTkID string             `bson:"checkOutTokenId,omitempty" json:"-"`
}

// Duration returns the visit length, zero while the member is still inside.
func (a *Attendance) Duration() time.Duration {
	if a.CheckOutAt == nil {
		return 0
	}
	return a.CheckOutAt.Sub(a.CheckInAt)
}
