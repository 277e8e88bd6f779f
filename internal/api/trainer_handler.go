package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
)

// TrainerHandler covers trainer discovery, plan requests and trainee assignments.
type TrainerHandler struct {
	trainerService   service.TrainerService
	dashboardService service.DashboardService
}

func NewTrainerHandler(trainerService service.TrainerService, dashboardService service.DashboardService) *TrainerHandler {
	return &TrainerHandler{trainerService: trainerService, dashboardService: dashboardService}
}

// --- DTOs ---

// TrainerResponse is the public profile shown to members picking a trainer.
type TrainerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

type CreatePlanRequestRequest struct {
	TrainerID string                 `json:"trainerId" binding:"required,objectid"`
	Kind      domain.PlanRequestKind `json:"kind" binding:"required,oneof=workout meal both"`
	Goal      string                 `json:"goal" binding:"omitempty,max=200"`
	Message   string                 `json:"message" binding:"omitempty,max=2000"`
}

type RejectPlanRequestRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type TraineeResponse struct {
	User       UserResponse             `json:"user"`
	Assignment domain.TraineeAssignment `json:"assignment"`
}

// --- Member side ---

// ListTrainers godoc
// @Summary List trainers
// @Description Enabled trainers members can send a plan request to.
// @Tags Trainers
// @Produce json
// @Security BearerAuth
// @Success 200 {array} TrainerResponse
// @Router /trainers [get]
func (h *TrainerHandler) ListTrainers(c *gin.Context) {
	trainers, err := h.trainerService.ListTrainers(c.Request.Context())
	if err != nil {
		respondWithError(c, err, "Failed to retrieve trainers.")
		return
	}
	resp := make([]TrainerResponse, len(trainers))
	for i, t := range trainers {
		resp[i] = TrainerResponse{ID: t.ID.Hex(), Name: t.Name, Specialty: t.Specialty, Bio: t.Bio}
	}
	c.JSON(http.StatusOK, resp)
}

// CreatePlanRequest godoc
// @Summary Ask a trainer for a plan
// @Description A member may have only one pending request at a time.
// @Tags Plan Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePlanRequestRequest true "Request details"
// @Success 201 {object} domain.PlanRequest
// @Failure 404 {object} gin.H "Trainer not found"
// @Failure 409 {object} gin.H "A pending request already exists"
// @Router /plan-requests [post]
func (h *TrainerHandler) CreatePlanRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreatePlanRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	trainerID, _ := primitive.ObjectIDFromHex(req.TrainerID) // validated by binding

	pr, err := h.trainerService.CreatePlanRequest(c.Request.Context(), userID, trainerID, req.Kind, req.Goal, req.Message)
	if err != nil {
		respondWithError(c, err, "Failed to create plan request.")
		return
	}
	c.JSON(http.StatusCreated, pr)
}

// ListMyPlanRequests godoc
// @Summary My plan requests
// @Tags Plan Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.PlanRequest
// @Router /plan-requests [get]
func (h *TrainerHandler) ListMyPlanRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	requests, err := h.trainerService.ListMyPlanRequests(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve plan requests.")
		return
	}
	if requests == nil {
		requests = []domain.PlanRequest{}
	}
	c.JSON(http.StatusOK, requests)
}

// CancelPlanRequest godoc
// @Summary Cancel my pending plan request
// @Tags Plan Requests
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Plan request ObjectID Hex"
// @Success 200 {object} domain.PlanRequest
// @Failure 404 {object} gin.H "Request not found"
// @Failure 409 {object} gin.H "Request is no longer pending"
// @Router /plan-requests/{requestId}/cancel [post]
func (h *TrainerHandler) CancelPlanRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestId")
	if !ok {
		return
	}
	pr, err := h.trainerService.CancelPlanRequest(c.Request.Context(), userID, requestID)
	if err != nil {
		respondWithError(c, err, "Failed to cancel plan request.")
		return
	}
	c.JSON(http.StatusOK, pr)
}

// --- Trainer side ---

// ListPlanRequests godoc
// @Summary Plan requests sent to me
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, accepted, rejected or cancelled"
// @Success 200 {array} domain.PlanRequest
// @Router /trainer/requests [get]
func (h *TrainerHandler) ListPlanRequests(c *gin.Context) {
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}
	status := domain.PlanRequestStatus(c.Query("status"))
	switch status {
	case "", domain.RequestPending, domain.RequestAccepted, domain.RequestRejected, domain.RequestCancelled:
	default:
		abortWithError(c, http.StatusBadRequest, "Invalid status filter.")
		return
	}

	requests, err := h.trainerService.ListPlanRequests(c.Request.Context(), trainerID, status)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve plan requests.")
		return
	}
	if requests == nil {
		requests = []domain.PlanRequest{}
	}
	c.JSON(http.StatusOK, requests)
}

// AcceptPlanRequest godoc
// @Summary Accept a plan request
// @Description Creates the trainee assignment, ending any previous one the member had.
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Plan request ObjectID Hex"
// @Success 200 {object} domain.TraineeAssignment
// @Failure 404 {object} gin.H "Request not found"
// @Failure 409 {object} gin.H "Request is no longer pending"
// @Router /trainer/requests/{requestId}/accept [post]
func (h *TrainerHandler) AcceptPlanRequest(c *gin.Context) {
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestId")
	if !ok {
		return
	}
	assignment, err := h.trainerService.AcceptPlanRequest(c.Request.Context(), trainerID, requestID)
	if err != nil {
		respondWithError(c, err, "Failed to accept plan request.")
		return
	}
	c.JSON(http.StatusOK, assignment)
}

// RejectPlanRequest godoc
// @Summary Reject a plan request
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Plan request ObjectID Hex"
// @Param body body RejectPlanRequestRequest false "Optional reason"
// @Success 200 {object} domain.PlanRequest
// @Router /trainer/requests/{requestId}/reject [post]
func (h *TrainerHandler) RejectPlanRequest(c *gin.Context) {
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestId")
	if !ok {
		return
	}
	var req RejectPlanRequestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}
	pr, err := h.trainerService.RejectPlanRequest(c.Request.Context(), trainerID, requestID, req.Reason)
	if err != nil {
		respondWithError(c, err, "Failed to reject plan request.")
		return
	}
	c.JSON(http.StatusOK, pr)
}

// ListTrainees godoc
// @Summary My active trainees
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} TraineeResponse
// @Router /trainer/trainees [get]
func (h *TrainerHandler) ListTrainees(c *gin.Context) {
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}
	trainees, err := h.trainerService.ListTrainees(c.Request.Context(), trainerID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve trainees.")
		return
	}
	resp := make([]TraineeResponse, len(trainees))
	for i := range trainees {
		resp[i] = TraineeResponse{User: MapUserToResponse(&trainees[i].User), Assignment: trainees[i].Assignment}
	}
	c.JSON(http.StatusOK, resp)
}

// EndAssignment godoc
// @Summary End a trainer-trainee assignment
// @Description The assigned trainer or an admin may end it. Ending an already ended assignment succeeds.
// @Tags Trainer
// @Security BearerAuth
// @Param assignmentId path string true "Assignment ObjectID Hex"
// @Success 204 "No Content"
// @Failure 403 {object} gin.H "Not your assignment"
// @Failure 404 {object} gin.H "Assignment not found"
// @Router /assignments/{assignmentId} [delete]
func (h *TrainerHandler) EndAssignment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	assignmentID, ok := pathID(c, "assignmentId")
	if !ok {
		return
	}
	if err := h.trainerService.EndAssignment(c.Request.Context(), actor, assignmentID); err != nil {
		respondWithError(c, err, "Failed to end assignment.")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDashboard godoc
// @Summary Trainer dashboard
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.TrainerStats
// @Router /trainer/dashboard [get]
func (h *TrainerHandler) GetDashboard(c *gin.Context) {
	trainerID, ok := currentUserID(c)
	if !ok {
		return
	}
	stats, err := h.dashboardService.TrainerStats(c.Request.Context(), trainerID)
	if err != nil {
		respondWithError(c, err, "Failed to load dashboard.")
		return
	}
	c.JSON(http.StatusOK, stats)
}
