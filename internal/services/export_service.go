package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"store-monitor/internal/models"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

// ExportService renders report rows and writes report files
type ExportService struct {
	reportsDir string
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// Summary describes a finished report at a glance
type Summary struct {
	TotalStores int              `json:"total_stores"`
	Averages    models.ReportRow `json:"averages"`
	BestStore   *StoreScore      `json:"best_performing_store,omitempty"`
	WorstStore  *StoreScore      `json:"worst_performing_store,omitempty"`
}

// StoreScore identifies a store by its weekly uptime
type StoreScore struct {
	StoreID        string  `json:"store_id"`
	UptimeLastWeek float64 `json:"uptime_last_week"`
}

// NewExportService creates an export service. An empty reportsDir disables SaveCSV.
func NewExportService(reportsDir string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ExportService {
	return &ExportService{
		reportsDir: reportsDir,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// WriteCSV writes the header and one line per row with two-decimal values
func (e *ExportService) WriteCSV(w io.Writer, rows []models.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.ReportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(models.ReportHeader))
	for _, row := range rows {
		record[0] = row.StoreID
		for i, v := range row.Values() {
			record[i+1] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row for store %s: %w", row.StoreID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes rows to <reportsDir>/report_<id>.csv and returns the path. The file
// appears atomically. Returns an empty path when no directory is configured.
func (e *ExportService) SaveCSV(ctx context.Context, reportID string, rows []models.ReportRow) (string, error) {
	if e.reportsDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(e.reportsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(e.reportsDir, "report_"+reportID+".csv")
	tmp, err := os.CreateTemp(e.reportsDir, ".report_"+reportID+"_*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := e.WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to publish report file: %w", err)
	}

	e.logger.Info(ctx, "[REPORT_FILE_WRITTEN] Report file written", logging.Fields{
		"path": path,
		"rows": len(rows),
	})
	return path, nil
}

// RenderXLSX writes a workbook with a report sheet and a summary sheet
func (e *ExportService) RenderXLSX(w io.Writer, rows []models.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	reportSheet := "report"
	summarySheet := "summary"
	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	header := make([]interface{}, len(models.ReportHeader))
	for i, h := range models.ReportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{row.StoreID}
		for _, v := range row.Values() {
			values = append(values, v)
		}
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row for store %s: %w", row.StoreID, err)
		}
	}

	summary := Summarize(rows)
	_ = f.SetCellValue(summarySheet, "A1", "Store Uptime Report")
	_ = f.SetCellValue(summarySheet, "A3", "Total stores")
	_ = f.SetCellValue(summarySheet, "B3", summary.TotalStores)
	for i, name := range models.ReportHeader[1:] {
		r := i + 4
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), "avg "+name)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), summary.Averages.Values()[i])
	}
	if summary.BestStore != nil {
		_ = f.SetCellValue(summarySheet, "A11", "Best store (week uptime)")
		_ = f.SetCellValue(summarySheet, "B11", summary.BestStore.StoreID)
		_ = f.SetCellValue(summarySheet, "C11", summary.BestStore.UptimeLastWeek)
		_ = f.SetCellValue(summarySheet, "A12", "Worst store (week uptime)")
		_ = f.SetCellValue(summarySheet, "B12", summary.WorstStore.StoreID)
		_ = f.SetCellValue(summarySheet, "C12", summary.WorstStore.UptimeLastWeek)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Summarize computes per-column averages and the best and worst store by weekly
// uptime. Ties go to the lower store id.
func Summarize(rows []models.ReportRow) Summary {
	s := Summary{TotalStores: len(rows), Averages: models.ReportRow{StoreID: "average"}}
	if len(rows) == 0 {
		return s
	}

	var sums [6]float64
	best, worst := rows[0], rows[0]
	for _, row := range rows {
		for i, v := range row.Values() {
			sums[i] += v
		}
		if row.UptimeLastWeek > best.UptimeLastWeek || (row.UptimeLastWeek == best.UptimeLastWeek && row.StoreID < best.StoreID) {
			best = row
		}
		if row.UptimeLastWeek < worst.UptimeLastWeek || (row.UptimeLastWeek == worst.UptimeLastWeek && row.StoreID < worst.StoreID) {
			worst = row
		}
	}

	n := float64(len(rows))
	s.Averages.UptimeLastHour = round2(sums[0] / n)
	s.Averages.UptimeLastDay = round2(sums[1] / n)
	s.Averages.UptimeLastWeek = round2(sums[2] / n)
	s.Averages.DowntimeLastHour = round2(sums[3] / n)
	s.Averages.DowntimeLastDay = round2(sums[4] / n)
	s.Averages.DowntimeLastWeek = round2(sums[5] / n)
	s.BestStore = &StoreScore{StoreID: best.StoreID, UptimeLastWeek: best.UptimeLastWeek}
	s.WorstStore = &StoreScore{StoreID: worst.StoreID, UptimeLastWeek: worst.UptimeLastWeek}
	return s
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
