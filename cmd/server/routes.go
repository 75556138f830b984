package main

import (
	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/handlers"
	"github.com/revulabs/revu/backend/internal/middleware"
	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for the public ingestion surface.
	ingestLimiter := middleware.NewRateLimiter(10, 20)

	// Health check
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Dashboard
			dashboardHandler := handlers.NewDashboardHandler(svc.dashboardService)
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)

			// Feedback ingestion and lookup
			feedbackHandler := handlers.NewFeedbackHandler(svc.feedbackService, svc.orchestrator)
			protected.GET("/feedback", feedbackHandler.List)
			protected.GET("/feedback/:uuid", feedbackHandler.Get)
			protected.POST("/feedback", ingestLimiter.Middleware(), feedbackHandler.Create)

			// Analysis
			analysisHandler := handlers.NewAnalysisHandler(svc.feedbackService, svc.orchestrator, svc.retryService)
			protected.POST("/feedback/:uuid/analyze", analysisHandler.Trigger)
			protected.GET("/feedback/:uuid/analysis", analysisHandler.Current)
			protected.GET("/feedback/:uuid/analysis/history", analysisHandler.History)
			protected.POST("/analysis/batch", analysisHandler.Batch)
			protected.POST("/analysis/:id/retry", analysisHandler.Retry)

			// Human review
			reviewHandler := handlers.NewReviewHandler(svc.reviewRouter)
			protected.GET("/reviews/pending", reviewHandler.Queue)
			protected.POST("/reviews/:id/claim", reviewHandler.Claim)
			protected.POST("/reviews/:id/release", reviewHandler.Release)
			protected.POST("/reviews/:id/resolve", reviewHandler.Resolve)
			protected.GET("/reviews/:id/decisions", reviewHandler.Decisions)

			// Theme clustering
			themeHandler := handlers.NewThemeHandler(svc.clusteringService)
			protected.GET("/themes/runs", themeHandler.History)
			protected.GET("/themes/runs/:id", themeHandler.Themes)
			protected.POST("/themes/run", themeHandler.Trigger)

			// Business calendars
			calendarHandler := handlers.NewCalendarHandler(svc.calendarService)
			protected.GET("/calendar/countries", calendarHandler.Countries)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			// Users
			userHandler := handlers.NewUserHandler(models.GetDB())
			admin.GET("/users", userHandler.List)
			admin.PUT("/users/:id", userHandler.Update)
			admin.DELETE("/users/:id", userHandler.Delete)

			// LLM Configs
			llmConfigHandler := handlers.NewLLMConfigHandler(models.GetDB())
			admin.GET("/llm-configs", llmConfigHandler.List)
			admin.GET("/llm-configs/active", llmConfigHandler.GetActive)
			admin.GET("/llm-configs/:id", llmConfigHandler.GetByID)
			admin.POST("/llm-configs", llmConfigHandler.Create)
			admin.PUT("/llm-configs/:id", llmConfigHandler.Update)
			admin.DELETE("/llm-configs/:id", llmConfigHandler.Delete)

			// Notification channels
			channelHandler := handlers.NewNotificationChannelHandler(models.GetDB(), svc.notificationSvc)
			admin.GET("/notification-channels", channelHandler.List)
			admin.POST("/notification-channels", channelHandler.Create)
			admin.PUT("/notification-channels/:id", channelHandler.Update)
			admin.DELETE("/notification-channels/:id", channelHandler.Delete)
			admin.POST("/notification-channels/:id/test", channelHandler.Test)

			// Daily digests
			digestHandler := handlers.NewDigestHandler(svc.digestService)
			admin.GET("/digests", digestHandler.List)
			admin.GET("/digests/:id", digestHandler.Get)
			admin.POST("/digests/generate", digestHandler.Generate)
			admin.POST("/digests/:id/resend", digestHandler.Resend)

			// System Config
			systemConfigHandler := handlers.NewSystemConfigHandler(models.GetDB())
			admin.GET("/system-config/ldap", systemConfigHandler.GetLDAPConfig)
			admin.PUT("/system-config/ldap", systemConfigHandler.UpdateLDAPConfig)
			admin.GET("/system-config/groups/:group", systemConfigHandler.GetGroup)
			admin.PUT("/system-config", systemConfigHandler.Update)

			// System Logs
			systemLogHandler := handlers.NewSystemLogHandler(models.GetDB())
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
			admin.GET("/system-logs/retention", systemLogHandler.GetRetention)
			admin.PUT("/system-logs/retention", systemLogHandler.UpdateRetention)
			admin.POST("/system-logs/cleanup", systemLogHandler.Cleanup)
		}
	}
}
