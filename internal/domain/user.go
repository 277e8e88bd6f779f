package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "trainer"
	RoleUser    Role = "user" // gym member
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTrainer, RoleUser:
		return true
	}
	return false
}

// OTP holds the pending email verification code for a user.
// Only the SHA-256 digest of the code is stored.
type OTP struct {
	CodeHash  string    `bson:"codeHash" json:"-"`
	ExpiresAt time.Time `bson:"expiresAt" json:"-"`
	Attempts  int       `bson:"attempts" json:"-"`
	SentAt    time.Time `bson:"sentAt" json:"-"`
}

// Profile is filled in during onboarding.
type Profile struct {
	Age             int     `bson:"age,omitempty" json:"age,omitempty"`
	Gender          string  `bson:"gender,omitempty" json:"gender,omitempty"`
	HeightCm        float64 `bson:"heightCm,omitempty" json:"heightCm,omitempty"`
	WeightKg        float64 `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	Goal            string  `bson:"goal,omitempty" json:"goal,omitempty"`                       // e.g. "lose_weight", "build_muscle", "endurance"
	ExperienceLevel string  `bson:"experienceLevel,omitempty" json:"experienceLevel,omitempty"` // "beginner" | "intermediate" | "advanced"
	DietPreference  string  `bson:"dietPreference,omitempty" json:"dietPreference,omitempty"`   // "any" | "vegetarian" | "vegan"
	Phone           string  `bson:"phone,omitempty" json:"phone,omitempty"`
}

// Membership tracks paid gym access.
type Membership struct {
	PlanID     *primitive.ObjectID  `bson:"planId,omitempty" json:"planId,omitempty"`
	PlanName   string               `bson:"planName,omitempty" json:"planName,omitempty"`
	ExpiresAt  *time.Time           `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	PaymentIDs []primitive.ObjectID `bson:"paymentIds,omitempty" json:"-"` // payments already added to ExpiresAt
}

// ActiveAt reports whether the membership covers t.
func (m Membership) ActiveAt(t time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.After(t)
}

// User represents an account in the system (admin, trainer or gym member).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // unique, stored lower-case
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	Disabled     bool               `bson:"disabled" json:"disabled"`

	EmailVerified bool `bson:"emailVerified" json:"emailVerified"`
	OTP           *OTP `bson:"otp,omitempty" json:"-"`

	OnboardingCompleted bool       `bson:"onboardingCompleted" json:"onboardingCompleted"`
	Profile             Profile    `bson:"profile" json:"profile"`
	Membership          Membership `bson:"membership" json:"membership"`

	// Set while the member has an active TraineeAssignment.
	TrainerID *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"`

	// Trainer-specific public info
	Specialty string `bson:"specialty,omitempty" json:"specialty,omitempty"`
	Bio       string `bson:"bio,omitempty" json:"bio,omitempty"`

	LastLogin *time.Time `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsTrainer() bool {
	return u.Role == RoleTrainer
}

func (u *User) IsMember() bool {
	return u.Role == RoleUser
}
