// Package main is the entry point of the navreturns service.
// The service computes trailing return profiles for every fund in a scheme
// list on a schedule, stores and exports them, and serves them over HTTP.
//
// The application follows the same layering throughout:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/navreturns/internal/config"
	"github.com/aristath/navreturns/internal/di"
	"github.com/aristath/navreturns/internal/scheduler"
	"github.com/aristath/navreturns/internal/server"
	"github.com/aristath/navreturns/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires all dependencies via the DI container (databases, repositories, services, jobs)
// 4. Schedules the refresh, cleanup and maintenance jobs
// 5. Starts the HTTP server
// 6. Waits for a shutdown signal and shuts down gracefully
//
// Two databases back the service:
// - cache.db: NAV histories fetched from mfapi.in (re-fetchable)
// - results.db: computed fund returns and the batch run log
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger so the configuration error is still reported
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	// Pretty mode enables human-readable output for development
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting navreturns")

	// ctx lives for the whole process; background services stop when it is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire all dependencies using DI container
	// Databases are opened first and their embedded schemas applied, then
	// repositories, the mfapi client, the return engine and the batch runner.
	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Close databases on exit so WAL checkpoints are written
	defer container.Close()

	// Schedule background jobs
	// - refresh_returns: full batch over the scheme list (REFRESH_SCHEDULE)
	// - client_data_cleanup: drop expired NAV histories (CLEANUP_SCHEDULE)
	// - database_maintenance: health check and WAL checkpoint (MAINTENANCE_SCHEDULE)
	sched := scheduler.New(log)
	if err := di.ScheduleJobs(sched, jobs, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule jobs")
	}
	sched.Start()

	// Initialize HTTP server
	// The API serves on-demand computations, stored results, per-category
	// summaries, batch triggering with a websocket progress stream, system
	// status and Prometheus metrics.
	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Calculator: container.Calculator,
		Runner:     container.Runner,
		Results:    container.ResultsRepo,
		CacheRepo:  container.CacheRepo,
		RefreshJob: jobs.Refresh,
		Hub:        container.EventHub,
		Metrics:    container.Metrics,
		Databases:  container.Databases(),
	})

	// Start server in goroutine so shutdown can be driven from here
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	// Stop scheduler
	// Waits for running jobs; a scheduled refresh in progress finishes first.
	sched.Stop()

	// Graceful shutdown
	// In-flight requests get up to 10 seconds. Batches triggered over HTTP
	// are cancelled by Shutdown and export nothing.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
