package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
)

// MemberHandler serves the signed-in user's own account pages.
type MemberHandler struct {
	userService      service.UserService
	dashboardService service.DashboardService
	noticeService    service.NoticeService
}

func NewMemberHandler(userService service.UserService, dashboardService service.DashboardService, noticeService service.NoticeService) *MemberHandler {
	return &MemberHandler{
		userService:      userService,
		dashboardService: dashboardService,
		noticeService:    noticeService,
	}
}

type OnboardingRequest struct {
	Age             int     `json:"age" binding:"required,min=13,max=100"`
	Gender          string  `json:"gender" binding:"omitempty,max=20"`
	HeightCm        float64 `json:"heightCm" binding:"required"`
	WeightKg        float64 `json:"weightKg" binding:"required"`
	Goal            string  `json:"goal" binding:"omitempty,max=40"`
	ExperienceLevel string  `json:"experienceLevel" binding:"omitempty,max=20"`
	DietPreference  string  `json:"dietPreference" binding:"omitempty,max=20"`
	Phone           string  `json:"phone" binding:"omitempty,max=30"`
}

// CompleteOnboarding godoc
// @Summary Save the member's fitness profile
// @Description Stores the profile and assigns generic workout and meal plans for any kind without an active plan.
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body OnboardingRequest true "Profile"
// @Success 200 {object} UserResponse
// @Failure 400 {object} gin.H "Invalid profile"
// @Failure 403 {object} gin.H "Only members onboard"
// @Router /me/onboarding [post]
func (h *MemberHandler) CompleteOnboarding(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	user, err := h.userService.CompleteOnboarding(c.Request.Context(), userID, domain.Profile{
		Age:             req.Age,
		Gender:          req.Gender,
		HeightCm:        req.HeightCm,
		WeightKg:        req.WeightKg,
		Goal:            req.Goal,
		ExperienceLevel: req.ExperienceLevel,
		DietPreference:  req.DietPreference,
		Phone:           req.Phone,
	})
	if err != nil {
		respondWithError(c, err, "Failed to save profile")
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// GetDashboard godoc
// @Summary Member dashboard
// @Description Active plans, membership, trainer, pending request and this month's check-ins.
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.UserStats
// @Router /me/dashboard [get]
func (h *MemberHandler) GetDashboard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	stats, err := h.dashboardService.UserStats(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err, "Failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListNotices godoc
// @Summary Notices visible to the caller
// @Description Pinned first, then newest. Bodies are returned as markdown and rendered HTML.
// @Tags Notices
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.NoticeView
// @Router /notices [get]
func (h *MemberHandler) ListNotices(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	notices, err := h.noticeService.ListNotices(c.Request.Context(), actor.Role)
	if err != nil {
		respondWithError(c, err, "Failed to load notices")
		return
	}
	if notices == nil {
		notices = []service.NoticeView{}
	}
	c.JSON(http.StatusOK, notices)
}
