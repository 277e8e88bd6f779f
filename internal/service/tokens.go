package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"alcyxob/gym-app/internal/domain"
)

var (
	resetSalt = []byte("gym-app.service.password_reset")

	errInvalidResetToken = errors.New("invalid token")
	errResetTokenExpired = errors.New("token expired")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// resetTokens signs password reset tokens. A token is bound to the user's
// current password hash and last login, so it stops working as soon as
// either changes.
type resetTokens struct {
	secret  []byte
	timeout time.Duration
}

func (r resetTokens) make(u *domain.User, now time.Time) (string, error) {
	return r.makeWithTimestamp(u, now.Unix())
}

func (r resetTokens) verify(u *domain.User, token string, now time.Time) error {
	if token == "" {
		return errInvalidResetToken
	}
	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidResetToken
	}
	data, err := b32.DecodeString(parts[0])
	if err != nil {
		return errInvalidResetToken
	}
	ts, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errInvalidResetToken
	}

	// check that token has not been tampered with
	expected, err := r.makeWithTimestamp(u, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 0 {
		return errInvalidResetToken
	}

	if now.Sub(time.Unix(ts, 0)) > r.timeout {
		return errResetTokenExpired
	}
	return nil
}

func (r resetTokens) makeWithTimestamp(u *domain.User, ts int64) (string, error) {
	sig, err := r.sign(resetHashValue(u, ts))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", b32.EncodeToString([]byte(strconv.FormatInt(ts, 10))), sig), nil
}

func (r resetTokens) sign(val []byte) (string, error) {
	key := sha256.Sum256(append(append([]byte{}, resetSalt...), r.secret...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func resetHashValue(u *domain.User, ts int64) []byte {
	var val bytes.Buffer
	val.WriteString(u.ID.Hex())
	val.WriteString(u.PasswordHash)
	if u.LastLogin != nil {
		val.WriteString(strconv.FormatInt(u.LastLogin.Unix(), 10))
	}
	val.WriteString(strconv.FormatInt(ts, 10))
	return val.Bytes()
}

// generateOTP returns a numeric code of the given length from crypto/rand.
func generateOTP(length int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func otpMatches(otp *domain.OTP, code string) bool {
	return subtle.ConstantTimeCompare([]byte(otp.CodeHash), []byte(hashOTP(code))) == 1
}
