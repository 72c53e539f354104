// Command reportgen computes a store uptime report from CSV files without a database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"store-monitor/internal/config"
	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/internal/services"
	"store-monitor/internal/timezone"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

func main() {
	cfg := config.Default()
	defaults := cfg.Report

	dataDir := flag.String("data-dir", "./data", "Directory containing store_status.csv, menu_hours.csv and timezones.csv")
	out := flag.String("out", "report.csv", "Path of the CSV report to write")
	xlsxOut := flag.String("xlsx", "", "Optional path of an XLSX workbook to write")
	universe := flag.String("universe", defaults.StoreUniverse, "Stores to report: observations, business_hours or union")
	fallback := flag.String("fallback", defaults.FallbackStatus, "Status assumed for stores without samples: active or inactive")
	zone := flag.String("default-timezone", defaults.DefaultTimezone, "Zone for stores without a timezone row")
	workers := flag.Int("workers", defaults.Workers, "Concurrent store computations")
	flag.Parse()

	logger := logging.NewStructuredLogger("store-monitor-reportgen", "1.0.0", logging.InfoLevel)
	collector := metrics.NewCollector("store_monitor_reportgen", prometheus.NewRegistry())
	ctx := context.Background()

	cfg.Report.StoreUniverse = *universe
	cfg.Report.FallbackStatus = *fallback
	cfg.Report.DefaultTimezone = *zone
	cfg.Report.Workers = *workers
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid flags: %v\n", err)
		os.Exit(2)
	}

	fallbackStatus, err := models.ParseStatus(*fallback)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -fallback: %v\n", err)
		os.Exit(2)
	}
	converter, err := timezone.NewConverter(*zone, logger, collector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -default-timezone: %v\n", err)
		os.Exit(2)
	}

	repo := repository.NewMemoryStoreRepository()
	ingestion := services.NewIngestionService(repo, logger, collector)
	ingested, err := ingestion.IngestDirectory(ctx, *dataDir, services.IngestOptions{BatchSize: 5000})
	if err != nil {
		logger.Fatal(ctx, "[REPORTGEN_ERROR] Ingestion failed", logging.Fields{"data_dir": *dataDir}, err)
	}

	reports := services.NewReportService(repo, converter, services.ReportOptions{
		Universe: models.Universe(*universe),
		Fallback: fallbackStatus,
		Workers:  *workers,
	}, logger, collector)

	started := time.Now()
	report, err := reports.Generate(ctx)
	if err != nil {
		logger.Fatal(ctx, "[REPORTGEN_ERROR] Report computation failed", logging.Fields{}, err)
	}
	elapsed := time.Since(started)

	exporter := services.NewExportService("", logger, collector)
	if err := writeFile(*out, func(f *os.File) error { return exporter.WriteCSV(f, report.Rows) }); err != nil {
		logger.Fatal(ctx, "[REPORTGEN_ERROR] Failed to write CSV", logging.Fields{"path": *out}, err)
	}
	if *xlsxOut != "" {
		if err := writeFile(*xlsxOut, func(f *os.File) error { return exporter.RenderXLSX(f, report.Rows) }); err != nil {
			logger.Fatal(ctx, "[REPORTGEN_ERROR] Failed to write XLSX", logging.Fields{"path": *xlsxOut}, err)
		}
	}

	printSummary(ingested, report, services.Summarize(report.Rows), elapsed)
	fmt.Printf("Report written to %s\n", *out)
	if *xlsxOut != "" {
		fmt.Printf("Workbook written to %s\n", *xlsxOut)
	}
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(ingested *services.IngestionResult, report *services.Report, summary services.Summary, elapsed time.Duration) {
	rule := strings.Repeat("═", 64)
	fmt.Println(rule)
	fmt.Println("STORE UPTIME REPORT")
	fmt.Println(rule)
	fmt.Printf("Records loaded:   %d (%d rejected)\n", ingested.SuccessfulRecords, ingested.FailedRecords)
	fmt.Printf("Reference time:   %s\n", report.ReferenceTime.Format(time.RFC3339))
	fmt.Printf("Stores:           %d\n", summary.TotalStores)
	fmt.Printf("Empty windows:    %d\n", report.DataGaps)
	fmt.Printf("Computed in:      %v\n", elapsed.Round(time.Millisecond))
	fmt.Println(strings.Repeat("─", 64))

	for i, name := range models.ReportHeader[1:] {
		fmt.Printf("avg %-20s %10.2f\n", name, summary.Averages.Values()[i])
	}
	if summary.BestStore != nil {
		fmt.Printf("best store:  %s (%.2f h week uptime)\n", summary.BestStore.StoreID, summary.BestStore.UptimeLastWeek)
		fmt.Printf("worst store: %s (%.2f h week uptime)\n", summary.WorstStore.StoreID, summary.WorstStore.UptimeLastWeek)
	}
	fmt.Println(rule)
}
