package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audience decides which roles see a notice.
type Audience string

const (
	AudienceAll      Audience = "all"
	AudienceTrainers Audience = "trainers"
	AudienceUsers    Audience = "users"
)

func (a Audience) Valid() bool {
	return a == AudienceAll || a == AudienceTrainers || a == AudienceUsers
}

// Includes reports whether a user with role r should see notices for a.
// Admins see everything.
func (a Audience) Includes(r Role) bool {
	switch {
	case r == RoleAdmin, a == AudienceAll:
		return true
	case a == AudienceTrainers:
		return r == RoleTrainer
	case a == AudienceUsers:
		return r == RoleUser
	}
	return false
}

// Notice is an announcement published by an admin. Body is markdown.
type Notice struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	Body         string             `bson:"body" json:"body"`
	Audience     Audience           `bson:"audience" json:"audience"`
	Pinned       bool               `bson:"pinned" json:"pinned"`
	VisibleFrom  *time.Time         `bson:"visibleFrom,omitempty" json:"visibleFrom,omitempty"`
	VisibleUntil *time.Time         `bson:"visibleUntil,omitempty" json:"visibleUntil,omitempty"`
	CreatedBy    primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// VisibleAt reports whether the notice's window contains t.
func (n *Notice) VisibleAt(t time.Time) bool {
	if n.VisibleFrom != nil && t.Before(*n.VisibleFrom) {
		return false
	}
	if n.VisibleUntil != nil && !t.Before(*n.VisibleUntil) {
		return false
	}
	return true
}
