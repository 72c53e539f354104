package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"store-monitor/internal/config"
	"store-monitor/internal/handlers"
	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/internal/services"
	"store-monitor/internal/timezone"
	"store-monitor/pkg/database"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("store-monitor-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting store monitor API server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"db_host":        cfg.Database.Host,
		"db_name":        cfg.Database.Database,
		"store_universe": cfg.Report.StoreUniverse,
		"workers":        cfg.Report.Workers,
	})

	metricsCollector := metrics.NewCollector("store_monitor", prometheus.DefaultRegisterer)

	db, err := database.NewPostgresDB(ctx, cfg.Database.ConnConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	converter, err := timezone.NewConverter(cfg.Report.DefaultTimezone, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid default timezone", logging.Fields{}, err)
	}

	fallback, err := models.ParseStatus(cfg.Report.FallbackStatus)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid fallback status", logging.Fields{}, err)
	}

	storeRepo := repository.NewStoreRepository(db, logger, metricsCollector)
	jobRepo := repository.NewMemoryJobRepository()

	reportService := services.NewReportService(storeRepo, converter, services.ReportOptions{
		Universe:       models.Universe(cfg.Report.StoreUniverse),
		Fallback:       fallback,
		Workers:        cfg.Report.Workers,
		StoreBatchSize: cfg.Report.StoreBatchSize,
	}, logger, metricsCollector)
	exportService := services.NewExportService(cfg.Report.ReportsDir, logger, metricsCollector)
	jobService := services.NewJobService(jobRepo, reportService, exportService, cfg.Report.MaxConcurrentJobs, logger, metricsCollector)

	reportHandler := handlers.NewReportHandler(jobService, exportService, storeRepo, logger, metricsCollector)

	router := mux.NewRouter()
	router.Use(handlers.RequestMiddleware(logger, metricsCollector))
	reportHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	// Running reports finish before the pool closes
	done := make(chan struct{})
	go func() {
		jobService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn(ctx, "[SHUTDOWN_JOBS] Report jobs still running at shutdown", logging.Fields{
			"running": jobRepo.Counts(ctx)[models.JobRunning],
		})
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
