package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
)

// maxWebhookBody caps the Stripe webhook payload we are willing to read.
const maxWebhookBody = 64 << 10

// PaymentHandler serves membership plans, checkouts and gateway callbacks.
type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type CreateMembershipPlanRequest struct {
	Name         string `json:"name" binding:"required,max=100"`
	Description  string `json:"description" binding:"omitempty,max=1000"`
	Price        int64  `json:"price" binding:"required,gt=0"`
	Currency     string `json:"currency" binding:"required,len=3"`
	DurationDays int    `json:"durationDays" binding:"required,gt=0"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type InitiatePaymentRequest struct {
	PlanID   string                 `json:"planId" binding:"required,objectid"`
	Provider domain.PaymentProvider `json:"provider" binding:"required,oneof=stripe khalti"`
}

// ListMembershipPlans godoc
// @Summary List purchasable membership plans
// @Tags Payments
// @Produce json
// @Success 200 {array} domain.MembershipPlan
// @Router /membership-plans [get]
func (h *PaymentHandler) ListMembershipPlans(c *gin.Context) {
	h.listPlans(c, true)
}

// ListAllMembershipPlans godoc
// @Summary List all membership plans, including retired ones
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.MembershipPlan
// @Router /admin/membership-plans [get]
func (h *PaymentHandler) ListAllMembershipPlans(c *gin.Context) {
	h.listPlans(c, false)
}

func (h *PaymentHandler) listPlans(c *gin.Context, activeOnly bool) {
	plans, err := h.paymentService.ListMembershipPlans(c.Request.Context(), activeOnly)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve membership plans.")
		return
	}
	if plans == nil {
		plans = []domain.MembershipPlan{}
	}
	c.JSON(http.StatusOK, plans)
}

// CreateMembershipPlan godoc
// @Summary Create a membership plan
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body CreateMembershipPlanRequest true "Plan; price in minor units"
// @Success 201 {object} domain.MembershipPlan
// @Router /admin/membership-plans [post]
func (h *PaymentHandler) CreateMembershipPlan(c *gin.Context) {
	var req CreateMembershipPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	plan, err := h.paymentService.CreateMembershipPlan(c.Request.Context(), domain.MembershipPlan{
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		Currency:     req.Currency,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		respondWithError(c, err, "Failed to create membership plan.")
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// SetMembershipPlanActive godoc
// @Summary Retire or re-enable a membership plan
// @Tags Admin
// @Accept json
// @Security BearerAuth
// @Param planId path string true "Membership plan ObjectID Hex"
// @Param body body SetActiveRequest true "Active flag"
// @Success 204 "No Content"
// @Router /admin/membership-plans/{planId}/status [put]
func (h *PaymentHandler) SetMembershipPlanActive(c *gin.Context) {
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.paymentService.SetMembershipPlanActive(c.Request.Context(), planID, *req.Active); err != nil {
		respondWithError(c, err, "Failed to update membership plan.")
		return
	}
	c.Status(http.StatusNoContent)
}

// InitiatePayment godoc
// @Summary Start paying for a membership plan
// @Description Returns the gateway page to redirect the member to.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body InitiatePaymentRequest true "Plan and provider"
// @Success 201 {object} service.Checkout
// @Failure 502 {object} gin.H "Gateway error"
// @Failure 503 {object} gin.H "Provider not configured"
// @Router /me/payments [post]
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	planID, _ := primitive.ObjectIDFromHex(req.PlanID)

	checkout, err := h.paymentService.InitiatePayment(c.Request.Context(), userID, planID, req.Provider)
	if err != nil {
		respondWithError(c, err, "Failed to start payment.")
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// VerifyPayment godoc
// @Summary Check a payment with its gateway
// @Description Called from the payment return page. Completing a payment extends the membership once.
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param paymentId path string true "Payment ObjectID Hex"
// @Success 200 {object} domain.Payment
// @Router /me/payments/{paymentId}/verify [post]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	paymentID, ok := pathID(c, "paymentId")
	if !ok {
		return
	}
	p, err := h.paymentService.VerifyPayment(c.Request.Context(), userID, paymentID)
	if err != nil {
		respondWithError(c, err, "Failed to verify payment.")
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListMyPayments godoc
// @Summary My payments, newest first
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Payment
// @Router /me/payments [get]
func (h *PaymentHandler) ListMyPayments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	payments, err := h.paymentService.ListMyPayments(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve payments.")
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	c.JSON(http.StatusOK, payments)
}

// ListPayments godoc
// @Summary All payments
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, completed, failed or cancelled"
// @Success 200 {array} domain.Payment
// @Router /admin/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	status := domain.PaymentStatus(c.Query("status"))
	if status != "" && !status.Final() && status != domain.PaymentPending {
		abortWithError(c, http.StatusBadRequest, "Invalid status filter.")
		return
	}
	payments, err := h.paymentService.ListPayments(c.Request.Context(), status)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve payments.")
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	c.JSON(http.StatusOK, payments)
}

// StripeWebhook godoc
// @Summary Stripe webhook receiver
// @Description Verifies the Stripe-Signature header against the raw body.
// @Tags Payments
// @Accept json
// @Success 200 "Received"
// @Failure 400 {object} gin.H "Bad signature"
// @Router /payments/stripe/webhook [post]
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Could not read request body.")
		return
	}
	err = h.paymentService.HandleStripeWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook rejected")
		respondWithError(c, err, "Failed to process webhook.")
		return
	}
	c.Status(http.StatusOK)
}
