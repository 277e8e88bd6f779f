package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"alcyxob/gym-app/internal/api"
	"alcyxob/gym-app/internal/config"
	gymmail "alcyxob/gym-app/internal/mail"
	"alcyxob/gym-app/internal/observability"
	"alcyxob/gym-app/internal/payment"
	"alcyxob/gym-app/internal/plangen"
	"alcyxob/gym-app/internal/qr"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/repository/memory"
	"alcyxob/gym-app/internal/repository/mongo"
	"alcyxob/gym-app/internal/service"
	"alcyxob/gym-app/internal/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title Gym Management API
// @version 1.0
// @description API for gym members, trainers and admins: plans, requests, payments, attendance and notices.
// @contact.name API Support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		// The logger is not configured yet; use a plain one for this message.
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("could not load config")
	}

	logger := observability.InitLogger("gym-app", cfg.Log)
	logger.Info().Str("version", version).Msg("starting gym server")

	flushSentry, sentryEnabled, err := observability.InitSentry(cfg.Sentry, version)
	if err != nil {
		logger.Warn().Err(err).Msg("sentry disabled")
	}
	defer flushSentry()

	observability.RegisterMetrics()

	// --- Repositories ---
	repos, closeDB := openRepositories(cfg, logger)
	defer closeDB()

	// --- External services ---
	var fileStorage storage.FileStorage
	if cfg.S3.BucketName != "" {
		s3Storage, err := storage.NewS3Storage(context.Background(), cfg.S3, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize S3 storage")
		}
		fileStorage = s3Storage
	} else {
		logger.Warn().Msg("s3.bucket_name not set, progress photos are disabled")
	}

	var mailer gymmail.Sender
	switch cfg.Mail.Provider {
	case "sendgrid":
		mailer = gymmail.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.AppName, cfg.Mail.FromEmail)
	default:
		mailer = gymmail.NewConsoleSender(logger)
	}

	var gateways []payment.Gateway
	var webhooks service.WebhookParser
	if cfg.Stripe.SecretKey != "" {
		stripeGateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)
		gateways = append(gateways, stripeGateway)
		webhooks = stripeGateway
	}
	if cfg.Khalti.SecretKey != "" {
		gateways = append(gateways, payment.NewKhaltiGateway(cfg.Khalti.SecretKey, cfg.Khalti.BaseURL, cfg.Khalti.WebsiteURL))
	}
	if len(gateways) == 0 {
		logger.Warn().Msg("no payment gateway configured, memberships cannot be purchased")
	}

	issuer := qr.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.QR.TokenTTL, cfg.QR.Size)
	generator := plangen.NewAIGenerator(cfg.AI, logger)
	loc := cfg.Attendance.Location()

	// --- Services ---
	planService := service.NewPlanService(repos.Users, repos.PlanVersions, repos.Assignments, generator)
	services := api.Services{
		Auth:       service.NewAuthService(repos.Users, mailer, cfg.JWT, cfg.OTP, cfg.Server.FrontendBaseURL),
		Users:      service.NewUserService(repos.Users, planService),
		Trainers:   service.NewTrainerService(repos.Users, repos.PlanRequests, repos.Assignments),
		Plans:      planService,
		Logs:       service.NewLogService(repos.Logs, repos.Assignments),
		Uploads:    service.NewUploadService(repos.Uploads, repos.Assignments, fileStorage),
		Payments:   service.NewPaymentService(repos.Users, repos.MembershipPlans, repos.Payments, gateways, webhooks, mailer, cfg.Server.FrontendBaseURL),
		Attendance: service.NewAttendanceService(repos.Attendance, repos.Users, issuer, loc, cfg.Attendance.RequireMembership),
		Notices:    service.NewNoticeService(repos.Notices),
		Dashboards: service.NewDashboardService(service.Repositories{
			Users:       repos.Users,
			Requests:    repos.PlanRequests,
			Assignments: repos.Assignments,
			Versions:    repos.PlanVersions,
			Payments:    repos.Payments,
			Attendance:  repos.Attendance,
		}, loc),
	}

	// --- Gin Engine ---
	if cfg.Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(observability.PanicHandlers(sentryEnabled)...)
	router.Use(
		observability.RequestLogger(logger),
		observability.RequestMetricsMiddleware(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"X-Checkin-Expires-At"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	api.SetupRoutes(router, cfg.JWT.Secret, services)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 45 * time.Second, // AI drafts can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Address).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server exiting")
}

// openRepositories connects the configured database driver and returns the
// repositories with a cleanup function.
func openRepositories(cfg config.Config, logger zerolog.Logger) (repository.Set, func()) {
	if cfg.Database.Driver == "memory" {
		logger.Warn().Msg("using in-memory database, data is lost on restart")
		return memory.NewStore().Repositories(), func() {}
	}

	client, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not connect to MongoDB")
	}
	db := client.Database(cfg.Database.Name)
	logger.Info().Str("database", cfg.Database.Name).Msg("database connection established")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, db, logger)
		logger.Info().Msg("index creation process completed")
	}()

	return mongo.NewRepositories(db), func() {
		if err := mongo.DisconnectDB(client); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}
}
