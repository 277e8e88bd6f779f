// Package qr issues the short-lived check-in tokens shown at the gym entrance
// and renders them as QR codes.
package qr

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

const purposeCheckIn = "checkin"

var (
	ErrInvalidToken = errors.New("invalid check-in token")
	ErrTokenExpired = errors.New("check-in token has expired")
)

type checkInClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Token is an issued check-in token.
type Token struct {
	ID        string
	Value     string
	IssuedBy  string
	ExpiresAt time.Time
}

// Issuer signs and verifies check-in tokens. It shares the HMAC secret with
// the auth tokens; the purpose claim keeps the two apart.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	size   int
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration, size int) *Issuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if size <= 0 {
		size = 256
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, size: size, now: time.Now}
}

// Issue creates a token signed by adminID.
func (i *Issuer) Issue(adminID string) (*Token, error) {
	now := i.now()
	claims := checkInClaims{
		Purpose: purposeCheckIn,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   adminID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("signing check-in token: %w", err)
	}
	return &Token{ID: claims.ID, Value: signed, IssuedBy: adminID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify parses value and returns the token id.
func (i *Issuer) Verify(value string) (*Token, error) {
	claims := &checkInClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	_, err := parser.ParseWithClaims(value, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purposeCheckIn || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return &Token{ID: claims.ID, Value: value, IssuedBy: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// PNG renders content as a QR code image.
func (i *Issuer) PNG(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, i.size)
}
