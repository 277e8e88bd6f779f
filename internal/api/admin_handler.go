package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/service"
)

// AdminHandler serves gym administration: users, trainers, notices and stats.
type AdminHandler struct {
	dashboardService service.DashboardService
	noticeService    service.NoticeService
}

func NewAdminHandler(dashboardService service.DashboardService, noticeService service.NoticeService) *AdminHandler {
	return &AdminHandler{dashboardService: dashboardService, noticeService: noticeService}
}

// --- DTOs ---

type CreateTrainerRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Specialty string `json:"specialty" binding:"omitempty,max=100"`
	Bio       string `json:"bio" binding:"omitempty,max=2000"`
}

type ChangeRoleRequest struct {
	Role domain.Role `json:"role" binding:"required,oneof=admin trainer user"`
}

type SetDisabledRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

type NoticeRequest struct {
	Title        string          `json:"title" binding:"required,max=200"`
	Body         string          `json:"body" binding:"required,max=20000"`
	Audience     domain.Audience `json:"audience" binding:"omitempty,oneof=all trainers users"`
	Pinned       bool            `json:"pinned"`
	VisibleFrom  *time.Time      `json:"visibleFrom"`
	VisibleUntil *time.Time      `json:"visibleUntil"`
}

func (r NoticeRequest) input() service.NoticeInput {
	audience := r.Audience
	if audience == "" {
		audience = domain.AudienceAll
	}
	return service.NoticeInput{
		Title:        r.Title,
		Body:         r.Body,
		Audience:     audience,
		Pinned:       r.Pinned,
		VisibleFrom:  r.VisibleFrom,
		VisibleUntil: r.VisibleUntil,
	}
}

// --- Dashboard and users ---

// GetDashboard godoc
// @Summary Admin dashboard
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.AdminStats
// @Router /admin/dashboard [get]
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.dashboardService.AdminStats(c.Request.Context())
	if err != nil {
		respondWithError(c, err, "Failed to load dashboard.")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListUsers godoc
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "admin, trainer or user"
// @Param q query string false "Search name or email"
// @Param limit query int false "Page size, default 50, max 200"
// @Param skip query int false "Offset"
// @Success 200 {array} UserResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	filter := repository.UserFilter{
		Role:  domain.Role(c.Query("role")),
		Query: c.Query("q"),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		abortWithError(c, http.StatusBadRequest, "Invalid role filter.")
		return
	}
	var err error
	if raw := c.Query("limit"); raw != "" {
		if filter.Limit, err = strconv.ParseInt(raw, 10, 64); err != nil || filter.Limit < 0 {
			abortWithError(c, http.StatusBadRequest, "Invalid limit.")
			return
		}
	}
	if raw := c.Query("skip"); raw != "" {
		if filter.Skip, err = strconv.ParseInt(raw, 10, 64); err != nil || filter.Skip < 0 {
			abortWithError(c, http.StatusBadRequest, "Invalid skip.")
			return
		}
	}

	users, err := h.dashboardService.ListUsers(c.Request.Context(), filter)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve users.")
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(users))
}

// CreateTrainer godoc
// @Summary Create a trainer account
// @Description Trainer accounts are created verified; they sign in with the given password.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param trainer body CreateTrainerRequest true "Trainer details"
// @Success 201 {object} UserResponse
// @Failure 409 {object} gin.H "Email already in use"
// @Router /admin/trainers [post]
func (h *AdminHandler) CreateTrainer(c *gin.Context) {
	var req CreateTrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	user, err := h.dashboardService.CreateTrainer(c.Request.Context(), service.NewTrainer{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Specialty: req.Specialty,
		Bio:       req.Bio,
	})
	if err != nil {
		respondWithError(c, err, "Failed to create trainer.")
		return
	}
	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// ChangeRole godoc
// @Summary Change a user's role
// @Description Demoting a trainer releases their trainees.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ObjectID Hex"
// @Param body body ChangeRoleRequest true "New role"
// @Success 200 {object} UserResponse
// @Failure 403 {object} gin.H "Cannot change own role"
// @Router /admin/users/{userId}/role [put]
func (h *AdminHandler) ChangeRole(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	user, err := h.dashboardService.ChangeRole(c.Request.Context(), adminID, userID, req.Role)
	if err != nil {
		respondWithError(c, err, "Failed to change role.")
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// SetDisabled godoc
// @Summary Disable or re-enable an account
// @Tags Admin
// @Accept json
// @Security BearerAuth
// @Param userId path string true "User ObjectID Hex"
// @Param body body SetDisabledRequest true "Disabled flag"
// @Success 204 "No Content"
// @Router /admin/users/{userId}/status [put]
func (h *AdminHandler) SetDisabled(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req SetDisabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.dashboardService.SetDisabled(c.Request.Context(), adminID, userID, *req.Disabled); err != nil {
		respondWithError(c, err, "Failed to update account.")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Notices ---

// ListAllNotices godoc
// @Summary All notices, including scheduled and expired ones
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.NoticeView
// @Router /admin/notices [get]
func (h *AdminHandler) ListAllNotices(c *gin.Context) {
	notices, err := h.noticeService.ListAllNotices(c.Request.Context())
	if err != nil {
		respondWithError(c, err, "Failed to retrieve notices.")
		return
	}
	if notices == nil {
		notices = []service.NoticeView{}
	}
	c.JSON(http.StatusOK, notices)
}

// CreateNotice godoc
// @Summary Publish a notice
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param notice body NoticeRequest true "Notice; body is markdown"
// @Success 201 {object} service.NoticeView
// @Router /admin/notices [post]
func (h *AdminHandler) CreateNotice(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req NoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	notice, err := h.noticeService.CreateNotice(c.Request.Context(), adminID, req.input())
	if err != nil {
		respondWithError(c, err, "Failed to create notice.")
		return
	}
	c.JSON(http.StatusCreated, notice)
}

// UpdateNotice godoc
// @Summary Edit a notice
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param noticeId path string true "Notice ObjectID Hex"
// @Param notice body NoticeRequest true "Notice"
// @Success 200 {object} service.NoticeView
// @Router /admin/notices/{noticeId} [put]
func (h *AdminHandler) UpdateNotice(c *gin.Context) {
	noticeID, ok := pathID(c, "noticeId")
	if !ok {
		return
	}
	var req NoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	notice, err := h.noticeService.UpdateNotice(c.Request.Context(), noticeID, req.input())
	if err != nil {
		respondWithError(c, err, "Failed to update notice.")
		return
	}
	c.JSON(http.StatusOK, notice)
}

// DeleteNotice godoc
// @Summary Delete a notice
// @Tags Admin
// @Security BearerAuth
// @Param noticeId path string true "Notice ObjectID Hex"
// @Success 204 "No Content"
// @Router /admin/notices/{noticeId} [delete]
func (h *AdminHandler) DeleteNotice(c *gin.Context) {
	noticeID, ok := pathID(c, "noticeId")
	if !ok {
		return
	}
	if err := h.noticeService.DeleteNotice(c.Request.Context(), noticeID); err != nil {
		respondWithError(c, err, "Failed to delete notice.")
		return
	}
	c.Status(http.StatusNoContent)
}
