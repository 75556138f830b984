package main

import (
	"time"

	"github.com/revulabs/revu/backend/internal/config"
	"github.com/revulabs/revu/backend/internal/handlers"
	"github.com/revulabs/revu/backend/internal/models"
	"github.com/revulabs/revu/backend/internal/services"
	"github.com/revulabs/revu/backend/internal/utils"
	"github.com/revulabs/revu/backend/pkg/logger"
)

// appServices holds the initialized services and handlers the router needs.
type appServices struct {
	cfg               *config.Config
	feedbackService   *services.FeedbackService
	orchestrator      *services.OrchestratorService
	reviewRouter      *services.ReviewRouterService
	clusteringService *services.ClusteringService
	digestService     *services.DigestService
	dashboardService  *services.DashboardService
	retryService      *services.RetryService
	calendarService   *services.BusinessCalendarService
	notificationSvc   *services.NotificationService
	taskQueue         services.TaskQueue
	worker            *services.Worker
	authHandler       *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, services,
// queue, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	db := models.GetDB()

	services.InitSystemLogger(db)
	services.StartLogCleanupScheduler(db)

	// Core pipeline services.
	configService := services.NewSystemConfigService(db)
	preprocessor := services.NewPreprocessorService(db, cfg.Analysis.MaxFeedbackChars)
	analyzer := services.NewAnalyzerService(db, &cfg.Anthropic, cfg.Analysis.ProviderRPS)

	demandWindow := time.Duration(configService.GetInt("demand_window_hours", 168)) * time.Hour
	demand := services.NewFeatureDemandAggregator(demandWindow)
	extractors := services.NewExtractorService(db, demand)

	reviewRouter := services.NewReviewRouterService(db)
	notificationService := services.NewNotificationService(db)

	taskQueue := services.InitTaskQueue(cfg)

	orchestrator := services.NewOrchestratorService(
		db,
		&cfg.Analysis,
		preprocessor,
		analyzer,
		extractors,
		reviewRouter,
		notificationService,
		taskQueue,
	)

	// Wire the queue back to the orchestrator's processor.
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(orchestrator.Process)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis, cfg.Analysis.WorkerConcurrency)
		if worker != nil {
			worker.SetProcessor(orchestrator.Process)
			if err := worker.Start(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start async worker")
			}
		}
	}

	// Backstop for analyses stuck in pending.
	services.StartRetryScheduler(db, orchestrator)

	// Daily theme clustering.
	clusteringService := services.NewClusteringService(db)
	clusteringService.StartScheduler()

	// Daily digest to notification channels.
	calendarService := services.NewBusinessCalendarService()
	digestService := services.NewDigestService(db, notificationService, calendarService, extractors, cfg.Analysis.DigestCountry)
	digestService.StartScheduler()

	feedbackService := services.NewFeedbackService(db, cfg.Analysis.MaxFeedbackChars)
	dashboardService := services.NewDashboardService(db, extractors)
	retryService := services.NewRetryService(db, orchestrator)

	authHandler := handlers.NewAuthHandler(db, cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:               cfg,
		feedbackService:   feedbackService,
		orchestrator:      orchestrator,
		reviewRouter:      reviewRouter,
		clusteringService: clusteringService,
		digestService:     digestService,
		dashboardService:  dashboardService,
		retryService:      retryService,
		calendarService:   calendarService,
		notificationSvc:   notificationService,
		taskQueue:         taskQueue,
		worker:            worker,
		authHandler:       authHandler,
	}
}

// shutdown stops schedulers and drains the queue.
func (s *appServices) shutdown() {
	s.digestService.StopScheduler()
	s.clusteringService.StopScheduler()
	logger.Info().Msg("Schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
