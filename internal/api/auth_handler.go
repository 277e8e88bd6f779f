package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

// RegisterRequest always creates a member account; trainers are created by admins.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,otpcode"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// UserResponse excludes sensitive info like password hash and OTP state.
type UserResponse struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Email               string            `json:"email"`
	Role                domain.Role       `json:"role"`
	Disabled            bool              `json:"disabled"`
	EmailVerified       bool              `json:"emailVerified"`
	OnboardingCompleted bool              `json:"onboardingCompleted"`
	Profile             domain.Profile    `json:"profile"`
	Membership          domain.Membership `json:"membership"`
	MembershipActive    bool              `json:"membershipActive"`
	TrainerID           *string           `json:"trainerId,omitempty"`
	Specialty           string            `json:"specialty,omitempty"`
	Bio                 string            `json:"bio,omitempty"`
	LastLogin           *time.Time        `json:"lastLogin,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// --- Handler Methods ---

// Register godoc
// @Summary Register a new gym member
// @Description Creates an unverified member account and emails a verification code.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Registration details"
// @Success 201 {object} UserResponse "User created, verification code sent"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 409 {object} gin.H "Conflict (email already exists)"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondWithError(c, err, "An unexpected error occurred during registration")
		return
	}
	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// VerifyOTP godoc
// @Summary Verify email with the emailed code
// @Description Confirms the email address and returns a JWT, so the user is signed in right away.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body VerifyOTPRequest true "Email and code"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} gin.H "Wrong or expired code"
// @Failure 409 {object} gin.H "Already verified"
// @Failure 429 {object} gin.H "Too many wrong codes"
// @Router /auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	token, user, err := h.authService.VerifyOTP(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondWithError(c, err, "Could not verify code")
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: MapUserToResponse(user)})
}

// ResendOTP godoc
// @Summary Send a new verification code
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body EmailRequest true "Email"
// @Success 200 {object} MessageResponse
// @Failure 409 {object} gin.H "Already verified"
// @Failure 429 {object} gin.H "Cooldown not elapsed"
// @Router /auth/resend-otp [post]
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.authService.ResendOTP(c.Request.Context(), req.Email); err != nil {
		respondWithError(c, err, "Could not send verification code")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "If the account exists, a new code has been sent."})
}

// Login godoc
// @Summary Log in a user
// @Description Authenticates a user and returns a JWT token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse "Login successful"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} gin.H "Unauthorized (invalid credentials)"
// @Failure 403 {object} gin.H "Email not verified or account disabled"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(c, err, "An unexpected error occurred during login")
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  MapUserToResponse(user),
	})
}

// ForgotPassword godoc
// @Summary Email a password reset link
// @Description Always succeeds so the endpoint cannot be used to enumerate accounts.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body EmailRequest true "Email"
// @Success 200 {object} MessageResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondWithError(c, err, "Could not send reset link")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "If the account exists, a reset link has been sent."})
}

// ResetPassword godoc
// @Summary Set a new password using a reset link token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ResetPasswordRequest true "Reset details"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} gin.H "Invalid or expired token"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		respondWithError(c, err, "Could not reset password")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password updated."})
}

// Me godoc
// @Summary Get the current user
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// ChangePassword godoc
// @Summary Change the current user's password
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ChangePasswordRequest true "Old and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} gin.H "Current password is incorrect"
// @Router /me/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		respondWithError(c, err, "Could not change password")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password updated."})
}

// MapUserToResponse converts a domain User to a UserResponse DTO.
// Crucially excludes PasswordHash and converts ObjectIDs to strings.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}

	resp := UserResponse{
		ID:                  user.ID.Hex(),
		Name:                user.Name,
		Email:               user.Email,
		Role:                user.Role,
		Disabled:            user.Disabled,
		EmailVerified:       user.EmailVerified,
		OnboardingCompleted: user.OnboardingCompleted,
		Profile:             user.Profile,
		Membership:          user.Membership,
		MembershipActive:    user.Membership.ActiveAt(time.Now()),
		Specialty:           user.Specialty,
		Bio:                 user.Bio,
		LastLogin:           user.LastLogin,
		CreatedAt:           user.CreatedAt,
	}

	if user.TrainerID != nil && *user.TrainerID != primitive.NilObjectID {
		trainerIDHex := user.TrainerID.Hex()
		resp.TrainerID = &trainerIDHex
	}
	return resp
}

// MapUsersToResponse converts a slice of users.
func MapUsersToResponse(users []domain.User) []UserResponse {
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = MapUserToResponse(&users[i])
	}
	return resp
}
