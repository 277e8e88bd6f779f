package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"alcyxob/gym-app/internal/config"
	"alcyxob/gym-app/internal/domain"
	gymmail "alcyxob/gym-app/internal/mail"
	"alcyxob/gym-app/internal/observability"
	"alcyxob/gym-app/internal/repository"
)

// --- Error Definitions ---
var (
	ErrUserAlreadyExists    = errors.New("user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
	ErrEmailNotVerified     = errors.New("email address is not verified")
	ErrAccountDisabled      = errors.New("account is disabled")
	ErrWrongPassword        = errors.New("current password is incorrect")

	ErrOTPInvalid          = errors.New("invalid verification code")
	ErrOTPExpired          = errors.New("verification code has expired")
	ErrOTPAttemptsExceeded = errors.New("too many wrong codes, request a new one")
	ErrOTPCooldown         = errors.New("please wait before requesting another code")
	ErrAlreadyVerified     = errors.New("email address is already verified")

	ErrInvalidResetToken = errors.New("password reset link is invalid or has expired")
)

const minPasswordLength = 8

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	// VerifyOTP confirms the email address and signs the user in.
	VerifyOTP(ctx context.Context, email, code string) (token string, user *domain.User, err error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, token, newPassword string) error
	ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error
	Me(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
}

// authService implements the AuthService interface.
type authService struct {
	userRepo    repository.UserRepository
	mailer      gymmail.Sender
	jwt         config.JWTConfig
	otp         config.OTPConfig
	frontendURL string
	reset       resetTokens
}

// NewAuthService creates a new instance of authService.
func NewAuthService(userRepo repository.UserRepository, mailer gymmail.Sender, jwtCfg config.JWTConfig, otpCfg config.OTPConfig, frontendURL string) AuthService {
	if jwtCfg.Secret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtCfg.Expiration <= 0 {
		jwtCfg.Expiration = time.Hour
	}
	if otpCfg.Length <= 0 {
		otpCfg.Length = 6
	}
	if otpCfg.MaxAttempts <= 0 {
		otpCfg.MaxAttempts = 5
	}
	if otpCfg.ResetTimeout <= 0 {
		otpCfg.ResetTimeout = 72 * time.Hour
	}
	return &authService{
		userRepo:    userRepo,
		mailer:      mailer,
		jwt:         jwtCfg,
		otp:         otpCfg,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		reset:       resetTokens{secret: []byte(jwtCfg.Secret), timeout: otpCfg.ResetTimeout},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(hashed), nil
}

// Register creates an unverified member account and emails a verification code.
func (s *authService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, invalid("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email address is invalid")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         domain.RoleUser,
	}
	if _, err = s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration; the unique index caught it.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	if err := s.issueOTP(ctx, user); err != nil {
		// The account exists; the member can ask for a new code.
		log.Warn().Err(err).Str("user_id", user.ID.Hex()).Msg("failed to send verification code")
	}

	user.PasswordHash = ""
	return user, nil
}

// issueOTP stores a fresh code for the user and emails it.
func (s *authService) issueOTP(ctx context.Context, user *domain.User) error {
	code, err := generateOTP(s.otp.Length)
	if err != nil {
		return err
	}
	now := timeNow()
	otp := &domain.OTP{
		CodeHash:  hashOTP(code),
		ExpiresAt: now.Add(s.otp.TTL),
		SentAt:    now,
	}
	if err := s.userRepo.SetOTP(ctx, user.ID, otp); err != nil {
		return err
	}
	user.OTP = otp

	msg, err := gymmail.OTPMessage(mail.Address{Name: user.Name, Address: user.Email}, code, s.otp.TTL)
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, msg)
	observability.RecordEmail(msg.Template, err == nil)
	return err
}

func (s *authService) VerifyOTP(ctx context.Context, email, code string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrOTPInvalid
		}
		return "", nil, err
	}
	if user.EmailVerified {
		return "", nil, ErrAlreadyVerified
	}
	if user.OTP == nil {
		return "", nil, ErrOTPInvalid
	}
	if user.OTP.Attempts >= s.otp.MaxAttempts {
		return "", nil, ErrOTPAttemptsExceeded
	}
	if timeNow().After(user.OTP.ExpiresAt) {
		return "", nil, ErrOTPExpired
	}
	// Every guess spends an attempt before the code is compared, so concurrent
	// guesses cannot exceed MaxAttempts between them.
	attempts, err := s.userRepo.ClaimOTPAttempt(ctx, user.ID, s.otp.MaxAttempts)
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return "", nil, ErrOTPAttemptsExceeded
		}
		return "", nil, err
	}
	if !otpMatches(user.OTP, strings.TrimSpace(code)) {
		if attempts >= s.otp.MaxAttempts {
			return "", nil, ErrOTPAttemptsExceeded
		}
		return "", nil, ErrOTPInvalid
	}

	if err := s.userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
		return "", nil, err
	}
	user.EmailVerified = true
	user.OTP = nil

	if user.Disabled {
		return "", nil, ErrAccountDisabled
	}
	return s.signIn(ctx, user)
}

// ResendOTP sends a new code. Unknown emails succeed silently.
func (s *authService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	if user.OTP != nil && timeNow().Sub(user.OTP.SentAt) < s.otp.ResendCooldown {
		return ErrOTPCooldown
	}
	return s.issueOTP(ctx, user)
}

// Login handles user authentication and JWT generation.
func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, ErrAuthenticationFailed
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}
	if user.Disabled {
		return "", nil, ErrAccountDisabled
	}
	if !user.EmailVerified {
		return "", nil, ErrEmailNotVerified
	}
	return s.signIn(ctx, user)
}

func (s *authService) signIn(ctx context.Context, user *domain.User) (string, *domain.User, error) {
	token, err := GenerateJWT(s.jwt, user)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}
	now := timeNow()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.Hex()).Msg("failed to record last login")
	} else {
		user.LastLogin = &now
	}

	user.PasswordHash = ""
	return token, user, nil
}

// ForgotPassword emails a reset link. It reports success for unknown or
// disabled accounts so the endpoint cannot be used to enumerate emails.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.Disabled {
		return nil
	}

	now := timeNow()
	token, err := s.reset.make(user, now)
	if err != nil {
		return err
	}
	q := url.Values{"email": {user.Email}, "token": {token}}
	link := s.frontendURL + "/reset-password?" + q.Encode()

	msg, err := gymmail.ResetMessage(mail.Address{Name: user.Name, Address: user.Email}, link, now.Add(s.reset.timeout))
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, msg)
	observability.RecordEmail(msg.Template, err == nil)
	return err
}

func (s *authService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if err := s.reset.verify(user, token, timeNow()); err != nil {
		return ErrInvalidResetToken
	}

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return err
	}
	// The link reached the inbox, which proves ownership of the address.
	if !user.EmailVerified {
		return s.userRepo.MarkEmailVerified(ctx, user.ID)
	}
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrWrongPassword
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, hashed)
}

func (s *authService) Me(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// --- JWT Helper ---

// Claims defines the structure of the JWT payload.
type Claims struct {
	UserID string      `json:"uid"`  // User ID
	Role   domain.Role `json:"role"` // User Role
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed HS256 token for the given user.
func GenerateJWT(cfg config.JWTConfig, user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
