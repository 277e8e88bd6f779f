package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth       service.AuthService
	Users      service.UserService
	Trainers   service.TrainerService
	Plans      service.PlanService
	Logs       service.LogService
	Uploads    service.UploadService
	Payments   service.PaymentService
	Attendance service.AttendanceService
	Notices    service.NoticeService
	Dashboards service.DashboardService
}

func SetupRoutes(router *gin.Engine, jwtSecret string, svc Services) {
	registerValidators()

	authHandler := NewAuthHandler(svc.Auth)
	memberHandler := NewMemberHandler(svc.Users, svc.Dashboards, svc.Notices)
	trainerHandler := NewTrainerHandler(svc.Trainers, svc.Dashboards)
	planHandler := NewPlanHandler(svc.Plans)
	logHandler := NewLogHandler(svc.Logs)
	uploadHandler := NewUploadHandler(svc.Uploads)
	paymentHandler := NewPaymentHandler(svc.Payments)
	attendanceHandler := NewAttendanceHandler(svc.Attendance)
	adminHandler := NewAdminHandler(svc.Dashboards, svc.Notices)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/verify-otp", authHandler.VerifyOTP)
			authGroup.POST("/resend-otp", authHandler.ResendOTP)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/forgot-password", authHandler.ForgotPassword)
			authGroup.POST("/reset-password", authHandler.ResetPassword)
		}

		apiV1.GET("/membership-plans", paymentHandler.ListMembershipPlans)
		apiV1.POST("/payments/stripe/webhook", paymentHandler.StripeWebhook)
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/notices", memberHandler.ListNotices)
		protected.GET("/trainers", trainerHandler.ListTrainers)

		// Plan versions are addressed directly; the service decides who may act.
		plans := protected.Group("/plans")
		{
			plans.GET("/:versionId", planHandler.GetVersion)
			plans.PUT("/:versionId", planHandler.UpdateDraft)
			plans.POST("/:versionId/submit", planHandler.SubmitVersion)
			plans.POST("/:versionId/retract", planHandler.RetractVersion)
			plans.POST("/:versionId/activate", planHandler.ActivateVersion)
		}

		me := protected.Group("/me")
		{
			me.GET("", authHandler.Me)
			me.PUT("/password", authHandler.ChangePassword)
			me.POST("/onboarding", memberHandler.CompleteOnboarding)
			me.GET("/dashboard", RoleMiddleware(domain.RoleUser), memberHandler.GetDashboard)

			me.GET("/plans", planHandler.ListVersions)
			me.GET("/plans/active", planHandler.GetActivePlan)
			me.POST("/plans/ai-draft", RoleMiddleware(domain.RoleUser), planHandler.GenerateAIDraft)

			me.POST("/logs", logHandler.CreateLog)
			me.GET("/logs", logHandler.ListLogs)
			me.DELETE("/logs/:logId", logHandler.DeleteLog)

			me.POST("/uploads/url", uploadHandler.RequestUploadURL)
			me.POST("/uploads", uploadHandler.ConfirmUpload)
			me.GET("/uploads", uploadHandler.ListUploads)
			me.DELETE("/uploads/:uploadId", uploadHandler.DeleteUpload)

			me.POST("/payments", RoleMiddleware(domain.RoleUser), paymentHandler.InitiatePayment)
			me.GET("/payments", paymentHandler.ListMyPayments)
			me.POST("/payments/:paymentId/verify", paymentHandler.VerifyPayment)

			me.POST("/attendance/scan", attendanceHandler.Scan)
			me.GET("/attendance", attendanceHandler.ListMyAttendance)
		}

		// --- Member Routes ---
		requests := protected.Group("/plan-requests")
		requests.Use(RoleMiddleware(domain.RoleUser))
		{
			requests.POST("", trainerHandler.CreatePlanRequest)
			requests.GET("", trainerHandler.ListMyPlanRequests)
			requests.POST("/:requestId/cancel", trainerHandler.CancelPlanRequest)
		}

		// --- Staff Routes (trainers for their trainees, admins for anyone) ---
		staff := protected.Group("")
		staff.Use(RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin))
		{
			staff.GET("/users/:userId/plans", planHandler.ListVersions)
			staff.GET("/users/:userId/plans/active", planHandler.GetActivePlan)
			staff.POST("/users/:userId/plans", planHandler.CreateDraft)
			staff.POST("/users/:userId/plans/ai-draft", planHandler.GenerateAIDraft)
			staff.GET("/users/:userId/logs", logHandler.ListLogs)
			staff.GET("/users/:userId/uploads", uploadHandler.ListUploads)
			staff.DELETE("/assignments/:assignmentId", trainerHandler.EndAssignment)
		}

		// --- Trainer Specific Routes ---
		trainerGroup := protected.Group("/trainer")
		trainerGroup.Use(RoleMiddleware(domain.RoleTrainer))
		{
			trainerGroup.GET("/dashboard", trainerHandler.GetDashboard)
			trainerGroup.GET("/requests", trainerHandler.ListPlanRequests)
			trainerGroup.POST("/requests/:requestId/accept", trainerHandler.AcceptPlanRequest)
			trainerGroup.POST("/requests/:requestId/reject", trainerHandler.RejectPlanRequest)
			trainerGroup.GET("/trainees", trainerHandler.ListTrainees)
		}

		// --- Admin Routes ---
		admin := protected.Group("/admin")
		admin.Use(RoleMiddleware(domain.RoleAdmin))
		{
			admin.GET("/dashboard", adminHandler.GetDashboard)
			admin.GET("/users", adminHandler.ListUsers)
			admin.PUT("/users/:userId/role", adminHandler.ChangeRole)
			admin.PUT("/users/:userId/status", adminHandler.SetDisabled)
			admin.POST("/trainers", adminHandler.CreateTrainer)

			admin.GET("/notices", adminHandler.ListAllNotices)
			admin.POST("/notices", adminHandler.CreateNotice)
			admin.PUT("/notices/:noticeId", adminHandler.UpdateNotice)
			admin.DELETE("/notices/:noticeId", adminHandler.DeleteNotice)

			admin.GET("/membership-plans", paymentHandler.ListAllMembershipPlans)
			admin.POST("/membership-plans", paymentHandler.CreateMembershipPlan)
			admin.PUT("/membership-plans/:planId/status", paymentHandler.SetMembershipPlanActive)
			admin.GET("/payments", paymentHandler.ListPayments)

			admin.GET("/attendance", attendanceHandler.ListAttendanceByDate)
			admin.GET("/attendance/qr", attendanceHandler.GetCheckInCode)
		}
	}
}
