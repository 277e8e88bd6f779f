package service

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
)

// Errors shared by several services.
var (
	ErrForbidden    = errors.New("not allowed to perform this action")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
)

// timeNow is replaced in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   primitive.ObjectID
	Role domain.Role
}

func (a Actor) IsAdmin() bool   { return a.Role == domain.RoleAdmin }
func (a Actor) IsTrainer() bool { return a.Role == domain.RoleTrainer }

// invalid wraps ErrInvalidInput with a reason a client can act on.
func invalid(reason string) error {
	return &inputError{reason: reason}
}

type inputError struct{ reason string }

func (e *inputError) Error() string { return e.reason }
func (e *inputError) Unwrap() error { return ErrInvalidInput }

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
