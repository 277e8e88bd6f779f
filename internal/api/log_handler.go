package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
)

const dateLayout = "2006-01-02"

// LogHandler serves workout and meal activity logs.
type LogHandler struct {
	logService service.LogService
}

func NewLogHandler(logService service.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

type CreateLogRequest struct {
	Kind    domain.PlanKind   `json:"kind" binding:"required,oneof=workout meal"`
	Date    string            `json:"date" binding:"omitempty,datetime=2006-01-02"` // defaults to today
	Entries []domain.LogEntry `json:"entries" binding:"required,min=1"`
	Notes   string            `json:"notes" binding:"omitempty,max=2000"`
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter.
func parseDateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s date, expected YYYY-MM-DD.", name))
		return time.Time{}, false
	}
	return t, true
}

// CreateLog godoc
// @Summary Log a workout or meals
// @Tags Logs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param log body CreateLogRequest true "Log"
// @Success 201 {object} domain.ActivityLog
// @Failure 400 {object} gin.H "Invalid entries or future date"
// @Router /me/logs [post]
func (h *LogHandler) CreateLog(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	var date time.Time
	if req.Date != "" {
		date, _ = time.Parse(dateLayout, req.Date) // validated by binding
	}

	l, err := h.logService.CreateLog(c.Request.Context(), userID, req.Kind, date, req.Entries, req.Notes)
	if err != nil {
		respondWithError(c, err, "Failed to save log.")
		return
	}
	c.JSON(http.StatusCreated, l)
}

// ListLogs godoc
// @Summary List activity logs, newest first
// @Description On /users/{userId}/logs the caller must coach the member or be an admin.
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param userId path string false "Member ObjectID Hex (staff routes)"
// @Param kind query string false "workout or meal"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {array} domain.ActivityLog
// @Router /me/logs [get]
// @Router /users/{userId}/logs [get]
func (h *LogHandler) ListLogs(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	from, ok := parseDateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "to")
	if !ok {
		return
	}
	kind := domain.PlanKind(c.Query("kind"))

	var logs []domain.ActivityLog
	var err error
	if c.Param("userId") == "" {
		logs, err = h.logService.ListMyLogs(c.Request.Context(), actor.ID, kind, from, to)
	} else {
		userID, ok := pathID(c, "userId")
		if !ok {
			return
		}
		logs, err = h.logService.ListTraineeLogs(c.Request.Context(), actor, userID, kind, from, to)
	}
	if err != nil {
		respondWithError(c, err, "Failed to retrieve logs.")
		return
	}
	if logs == nil {
		logs = []domain.ActivityLog{}
	}
	c.JSON(http.StatusOK, logs)
}

// DeleteLog godoc
// @Summary Delete one of my logs
// @Tags Logs
// @Security BearerAuth
// @Param logId path string true "Log ObjectID Hex"
// @Success 204 "No Content"
// @Failure 404 {object} gin.H "Log not found"
// @Router /me/logs/{logId} [delete]
func (h *LogHandler) DeleteLog(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	logID, ok := pathID(c, "logId")
	if !ok {
		return
	}
	if err := h.logService.DeleteLog(c.Request.Context(), userID, logID); err != nil {
		respondWithError(c, err, "Failed to delete log.")
		return
	}
	c.Status(http.StatusNoContent)
}
