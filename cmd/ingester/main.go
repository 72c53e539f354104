package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"store-monitor/internal/config"
	"store-monitor/internal/repository"
	"store-monitor/internal/services"
	"store-monitor/pkg/database"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "Directory containing store_status.csv, menu_hours.csv and timezones.csv")
	batchSize := flag.Int("batch-size", 1000, "Number of records to write in each batch")
	truncate := flag.Bool("truncate", false, "Remove existing data before loading")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("store-monitor-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting store data ingestion", logging.Fields{
		"data_dir":   *dataDir,
		"batch_size": *batchSize,
		"truncate":   *truncate,
	})

	metricsCollector := metrics.NewCollector("store_monitor_ingester", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(ctx, cfg.Database.ConnConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	storeRepo := repository.NewStoreRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(storeRepo, logger, metricsCollector)

	result, err := ingestionService.IngestDirectory(ctx, *dataDir, services.IngestOptions{
		BatchSize: *batchSize,
		Truncate:  *truncate,
	})
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
	}

	printResult(result)

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}

func printResult(result *services.IngestionResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	for _, f := range result.Files {
		fmt.Printf("%-16s %8d ok %8d failed  (%s)\n", f.Dataset, f.SuccessfulRecords, f.FailedRecords, f.Path)
	}
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i == 10 {
				fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
				break
			}
			fmt.Printf("  - %s\n", errMsg)
		}
	}
}
