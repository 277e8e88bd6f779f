package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"alcyxob/gym-app/internal/observability"
	"alcyxob/gym-app/internal/payment"
	"alcyxob/gym-app/internal/service"
)

type errorStatus struct {
	err    error
	status int
}

// errorStatuses maps service errors to HTTP status codes. The first match wins.
var errorStatuses = []errorStatus{
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrInvalidPlanKind, http.StatusBadRequest},
	{service.ErrUploadNotImage, http.StatusBadRequest},
	{service.ErrOTPInvalid, http.StatusBadRequest},
	{service.ErrOTPExpired, http.StatusBadRequest},
	{service.ErrInvalidResetToken, http.StatusBadRequest},
	{service.ErrWrongPassword, http.StatusBadRequest},
	{service.ErrCheckInTokenInvalid, http.StatusBadRequest},
	{service.ErrCheckInTokenExpired, http.StatusBadRequest},
	{service.ErrPaymentNotInitiated, http.StatusBadRequest},
	{payment.ErrInvalidSignature, http.StatusBadRequest},

	{service.ErrAuthenticationFailed, http.StatusUnauthorized},

	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrEmailNotVerified, http.StatusForbidden},
	{service.ErrAccountDisabled, http.StatusForbidden},
	{service.ErrPlanAccessDenied, http.StatusForbidden},
	{service.ErrAssignmentAccessDenied, http.StatusForbidden},
	{service.ErrNotYourTrainee, http.StatusForbidden},
	{service.ErrMembershipInactive, http.StatusForbidden},
	{service.ErrOnboardingNotAllowed, http.StatusForbidden},
	{service.ErrCannotChangeSelf, http.StatusForbidden},
	{service.ErrUploadKeyMismatch, http.StatusForbidden},

	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrTrainerNotFound, http.StatusNotFound},
	{service.ErrPlanRequestNotFound, http.StatusNotFound},
	{service.ErrAssignmentNotFound, http.StatusNotFound},
	{service.ErrPlanNotFound, http.StatusNotFound},
	{service.ErrNoActivePlan, http.StatusNotFound},
	{service.ErrLogNotFound, http.StatusNotFound},
	{service.ErrNoticeNotFound, http.StatusNotFound},
	{service.ErrUploadNotFound, http.StatusNotFound},
	{service.ErrUploadObjectMissing, http.StatusNotFound},
	{service.ErrPaymentNotFound, http.StatusNotFound},
	{service.ErrMembershipPlanNotFound, http.StatusNotFound},

	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrAlreadyVerified, http.StatusConflict},
	{service.ErrPendingRequestExists, http.StatusConflict},
	{service.ErrInvalidRequestState, http.StatusConflict},
	{service.ErrInvalidPlanState, http.StatusConflict},
	{service.ErrAlreadyCheckedOut, http.StatusConflict},

	{service.ErrOTPCooldown, http.StatusTooManyRequests},
	{service.ErrOTPAttemptsExceeded, http.StatusTooManyRequests},

	{service.ErrPaymentGateway, http.StatusBadGateway},
	{service.ErrProviderUnavailable, http.StatusServiceUnavailable},
	{service.ErrStorageUnavailable, http.StatusServiceUnavailable},
}

func statusForError(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// respondWithError writes err with its mapped status. Unexpected errors are
// logged, reported to Sentry and replaced by fallback so internals never leak.
func respondWithError(c *gin.Context, err error, fallback string) {
	status := statusForError(err)
	if status < http.StatusInternalServerError {
		abortWithError(c, status, err.Error())
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
	_ = c.Error(err)
	observability.CaptureError(c, err)
	if status == http.StatusInternalServerError {
		abortWithError(c, status, fallback)
		return
	}
	abortWithError(c, status, err.Error())
}
