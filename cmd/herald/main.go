package main

import (
	"context"

	"herald/internal/handlers"
	"herald/internal/linkedin"
	"herald/pkg/auth"
	"herald/pkg/config"
	"herald/pkg/database"
	"herald/pkg/logging"
	"herald/pkg/monitoring"
	"herald/pkg/server"
	"herald/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("herald")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Herald (Scheduled Publish API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	cronSecret := config.RequireEnv("CRON_SECRET")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("herald", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("herald", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
		"CRON_SECRET":  cronSecret,
	}))

	// Create publish pipeline metrics
	metrics := &handlers.HeraldMetrics{}
	metrics.PostsProcessed, metrics.Runs, metrics.RunDuration = metricsCollector.CreatePublishMetrics()
	metrics.DBQueries, metrics.DBDuration, metrics.DBConnections = metricsCollector.CreateDatabaseMetrics()

	// Initialize handlers
	handlers.Init(db, logger)

	// LinkedIn client with retry and circuit breaking
	publisher := linkedin.NewClient()

	// Initialize and start the publish runner for interval-driven passes
	runner := handlers.NewRunner(db, logger, publisher, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runner.Start(ctx)
	defer runner.Stop()

	logger.Info("Publish runner started - scheduled posts will be processed on interval")

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "herald", healthChecker, metricsCollector)

	// API routes
	{
		// Cron trigger endpoints (shared-secret auth). GET is kept alongside
		// POST because some schedulers can only issue GET requests.
		cron := router.Group("/cron", auth.CronAuthMiddleware(cronSecret))
		cron.POST("/publish", handlers.TriggerPublish(runner))
		cron.GET("/publish", handlers.TriggerPublish(runner))

		// Operational visibility
		router.GET("/queue/status", handlers.GetQueueStatus)
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("herald", "18080")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
