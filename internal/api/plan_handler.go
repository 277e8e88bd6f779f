package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
)

// PlanHandler serves workout and meal plan versions. The same handlers back
// the member's /me/plans routes and the staff /users/{userId}/plans routes.
type PlanHandler struct {
	planService service.PlanService
}

func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

type CreatePlanDraftRequest struct {
	Kind    domain.PlanKind    `json:"kind" binding:"required,oneof=workout meal"`
	Content domain.PlanContent `json:"content" binding:"required"`
}

type UpdatePlanDraftRequest struct {
	Content domain.PlanContent `json:"content" binding:"required"`
}

type GenerateDraftRequest struct {
	Kind domain.PlanKind `json:"kind" binding:"required,oneof=workout meal"`
}

// planTarget returns the member a plan route is about: the userId path
// parameter on staff routes, the caller on /me routes.
func planTarget(c *gin.Context, actor service.Actor) (primitive.ObjectID, bool) {
	if c.Param("userId") == "" {
		return actor.ID, true
	}
	return pathID(c, "userId")
}

// GetActivePlan godoc
// @Summary Get the active plan of a kind
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param userId path string false "Member ObjectID Hex (staff routes)"
// @Param kind query string true "workout or meal"
// @Success 200 {object} domain.PlanVersion
// @Failure 404 {object} gin.H "No active plan"
// @Router /me/plans/active [get]
// @Router /users/{userId}/plans/active [get]
func (h *PlanHandler) GetActivePlan(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	userID, ok := planTarget(c, actor)
	if !ok {
		return
	}
	v, err := h.planService.GetActivePlan(c.Request.Context(), actor, userID, domain.PlanKind(c.Query("kind")))
	if err != nil {
		respondWithError(c, err, "Failed to retrieve plan.")
		return
	}
	c.JSON(http.StatusOK, v)
}

// ListVersions godoc
// @Summary List plan versions, newest first
// @Description Members do not see drafts their trainer is still working on.
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param userId path string false "Member ObjectID Hex (staff routes)"
// @Param kind query string false "workout or meal"
// @Success 200 {array} domain.PlanVersion
// @Router /me/plans [get]
// @Router /users/{userId}/plans [get]
func (h *PlanHandler) ListVersions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	userID, ok := planTarget(c, actor)
	if !ok {
		return
	}
	versions, err := h.planService.ListVersions(c.Request.Context(), actor, userID, domain.PlanKind(c.Query("kind")))
	if err != nil {
		respondWithError(c, err, "Failed to retrieve plan versions.")
		return
	}
	if versions == nil {
		versions = []domain.PlanVersion{}
	}
	c.JSON(http.StatusOK, versions)
}

// CreateDraft godoc
// @Summary Write a new draft plan for a trainee
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Member ObjectID Hex"
// @Param plan body CreatePlanDraftRequest true "Kind and content"
// @Success 201 {object} domain.PlanVersion
// @Failure 403 {object} gin.H "Not your trainee"
// @Router /users/{userId}/plans [post]
func (h *PlanHandler) CreateDraft(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	userID, ok := planTarget(c, actor)
	if !ok {
		return
	}
	var req CreatePlanDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	v, err := h.planService.CreateDraft(c.Request.Context(), actor, userID, req.Kind, req.Content)
	if err != nil {
		respondWithError(c, err, "Failed to create plan draft.")
		return
	}
	c.JSON(http.StatusCreated, v)
}

// GenerateAIDraft godoc
// @Summary Generate a draft plan with AI
// @Description Falls back to the generic template when the AI provider is unavailable; check the source field.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string false "Member ObjectID Hex (staff routes)"
// @Param body body GenerateDraftRequest true "Kind"
// @Success 201 {object} domain.PlanVersion
// @Router /me/plans/ai-draft [post]
// @Router /users/{userId}/plans/ai-draft [post]
func (h *PlanHandler) GenerateAIDraft(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	userID, ok := planTarget(c, actor)
	if !ok {
		return
	}
	var req GenerateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	v, err := h.planService.GenerateAIDraft(c.Request.Context(), actor, userID, req.Kind)
	if err != nil {
		respondWithError(c, err, "Failed to generate plan draft.")
		return
	}
	c.JSON(http.StatusCreated, v)
}

// GetVersion godoc
// @Summary Get one plan version
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param versionId path string true "Plan version ObjectID Hex"
// @Success 200 {object} domain.PlanVersion
// @Failure 404 {object} gin.H "Not found"
// @Router /plans/{versionId} [get]
func (h *PlanHandler) GetVersion(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	versionID, ok := pathID(c, "versionId")
	if !ok {
		return
	}
	v, err := h.planService.GetVersion(c.Request.Context(), actor, versionID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve plan version.")
		return
	}
	c.JSON(http.StatusOK, v)
}

// UpdateDraft godoc
// @Summary Replace the content of a draft
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param versionId path string true "Plan version ObjectID Hex"
// @Param body body UpdatePlanDraftRequest true "Content"
// @Success 200 {object} domain.PlanVersion
// @Failure 409 {object} gin.H "Version is not a draft"
// @Router /plans/{versionId} [put]
func (h *PlanHandler) UpdateDraft(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	versionID, ok := pathID(c, "versionId")
	if !ok {
		return
	}
	var req UpdatePlanDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	v, err := h.planService.UpdateDraft(c.Request.Context(), actor, versionID, req.Content)
	if err != nil {
		respondWithError(c, err, "Failed to update plan draft.")
		return
	}
	c.JSON(http.StatusOK, v)
}

type versionTransition func(ctx context.Context, actor service.Actor, id primitive.ObjectID) (*domain.PlanVersion, error)

func (h *PlanHandler) transition(c *gin.Context, fn versionTransition, failure string) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	versionID, ok := pathID(c, "versionId")
	if !ok {
		return
	}
	v, err := fn(c.Request.Context(), actor, versionID)
	if err != nil {
		respondWithError(c, err, failure)
		return
	}
	c.JSON(http.StatusOK, v)
}

// SubmitVersion godoc
// @Summary Send a draft to the member for approval
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param versionId path string true "Plan version ObjectID Hex"
// @Success 200 {object} domain.PlanVersion
// @Router /plans/{versionId}/submit [post]
func (h *PlanHandler) SubmitVersion(c *gin.Context) {
	h.transition(c, h.planService.SubmitVersion, "Failed to submit plan version.")
}

// RetractVersion godoc
// @Summary Take a submitted version back to draft
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param versionId path string true "Plan version ObjectID Hex"
// @Success 200 {object} domain.PlanVersion
// @Router /plans/{versionId}/retract [post]
func (h *PlanHandler) RetractVersion(c *gin.Context) {
	h.transition(c, h.planService.RetractVersion, "Failed to retract plan version.")
}

// ActivateVersion godoc
// @Summary Activate a plan version
// @Description The previously active version of the same kind becomes inactive.
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param versionId path string true "Plan version ObjectID Hex"
// @Success 200 {object} domain.PlanVersion
// @Failure 409 {object} gin.H "Version cannot be activated"
// @Router /plans/{versionId}/activate [post]
func (h *PlanHandler) ActivateVersion(c *gin.Context) {
	h.transition(c, h.planService.ActivateVersion, "Failed to activate plan version.")
}
