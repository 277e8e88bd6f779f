package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"alcyxob/gym-app/internal/config"
)

// InitSentry configures error reporting. It returns a flush function for
// shutdown and reports whether Sentry is enabled; an empty DSN disables it.
func InitSentry(cfg config.SentryConfig, release string) (func(), bool, error) {
	if cfg.DSN == "" {
		return func() {}, false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return func() {}, false, err
	}
	return func() { sentry.Flush(2 * time.Second) }, true, nil
}

// SentryMiddleware attaches a hub to every request and reports panics, then
// re-panics so an outer gin.Recovery still answers with a 500.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

// PanicHandlers returns gin.Recovery followed by the Sentry middleware when
// enabled. Recovery has to come first: Sentry re-panics after reporting.
func PanicHandlers(sentryEnabled bool) []gin.HandlerFunc {
	handlers := []gin.HandlerFunc{gin.Recovery()}
	if sentryEnabled {
		handlers = append(handlers, SentryMiddleware())
	}
	return handlers
}

// CaptureError forwards an unexpected error to Sentry, using the request hub when present.
func CaptureError(c *gin.Context, err error) {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}
