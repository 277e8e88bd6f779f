package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
)

// AttendanceHandler serves QR check-in codes and visit history.
type AttendanceHandler struct {
	attendanceService service.AttendanceService
}

func NewAttendanceHandler(attendanceService service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService}
}

type ScanRequest struct {
	Token string `json:"token" binding:"required"`
}

// validDay checks an optional YYYY-MM-DD query value.
func validDay(c *gin.Context, name string) (string, bool) {
	day := c.Query(name)
	if day == "" {
		return "", true
	}
	if _, err := time.Parse(dateLayout, day); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s date, expected YYYY-MM-DD.", name))
		return "", false
	}
	return day, true
}

// GetCheckInCode godoc
// @Summary Issue the QR code shown at the front desk
// @Description Returns a PNG by default, or the token and base64 PNG with format=json.
// @Tags Attendance
// @Produce png
// @Produce json
// @Security BearerAuth
// @Param format query string false "json"
// @Success 200 {object} service.CheckInCode
// @Router /admin/attendance/qr [get]
func (h *AttendanceHandler) GetCheckInCode(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	code, err := h.attendanceService.IssueCheckInCode(c.Request.Context(), adminID)
	if err != nil {
		respondWithError(c, err, "Failed to issue check-in code.")
		return
	}

	c.Header("Cache-Control", "no-store")
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, code)
		return
	}
	c.Header("X-Checkin-Expires-At", code.ExpiresAt.UTC().Format(time.RFC3339))
	c.Data(http.StatusOK, "image/png", code.PNG)
}

// Scan godoc
// @Summary Scan the front desk QR code
// @Description The first scan of the day checks in, the next one checks out.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ScanRequest true "Scanned token"
// @Success 200 {object} service.ScanResult
// @Failure 400 {object} gin.H "Invalid or expired code"
// @Failure 403 {object} gin.H "Membership inactive"
// @Failure 409 {object} gin.H "Already checked out today"
// @Router /me/attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	result, err := h.attendanceService.Scan(c.Request.Context(), userID, req.Token)
	if err != nil {
		respondWithError(c, err, "Failed to record attendance.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMyAttendance godoc
// @Summary My visits
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param from query string false "YYYY-MM-DD, defaults to 30 days ago"
// @Param to query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {array} domain.Attendance
// @Router /me/attendance [get]
func (h *AttendanceHandler) ListMyAttendance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	from, ok := validDay(c, "from")
	if !ok {
		return
	}
	to, ok := validDay(c, "to")
	if !ok {
		return
	}
	records, err := h.attendanceService.ListMyAttendance(c.Request.Context(), userID, from, to)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve attendance.")
		return
	}
	if records == nil {
		records = []domain.Attendance{}
	}
	c.JSON(http.StatusOK, records)
}

// ListAttendanceByDate godoc
// @Summary Everyone who visited on a day
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {array} service.AttendanceRecord
// @Router /admin/attendance [get]
func (h *AttendanceHandler) ListAttendanceByDate(c *gin.Context) {
	day, ok := validDay(c, "date")
	if !ok {
		return
	}
	if day == "" {
		day = h.attendanceService.Today()
	}
	records, err := h.attendanceService.ListAttendanceByDate(c.Request.Context(), day)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve attendance.")
		return
	}
	if records == nil {
		records = []service.AttendanceRecord{}
	}
	c.JSON(http.StatusOK, records)
}
