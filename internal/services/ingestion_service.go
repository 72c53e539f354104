package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

// Source file names inside an ingestion directory
const (
	StatusFile        = "store_status.csv"
	BusinessHoursFile = "menu_hours.csv"
	TimezonesFile     = "timezones.csv"
)

const maxReportedRowErrors = 20

// IngestionService loads the three store CSV files into a repository
type IngestionService struct {
	repo    repository.StoreRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestOptions controls a directory ingestion
type IngestOptions struct {
	BatchSize int
	// Truncate clears previously ingested data first
	Truncate bool
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Files             []*FileIngestionResult
	Duration          time.Duration
	Errors            []string
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	Dataset           string
	Path              string
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	RowErrors         []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.StoreRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests store_status.csv, menu_hours.csv and timezones.csv from dataDir.
// A missing file is skipped; at least one must exist.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, opts IngestOptions) (*IngestionResult, error) {
	timer := s.metrics.NewTimer(s.metrics.IngestionDuration)
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": opts.BatchSize,
		"truncate":   opts.Truncate,
		"stage":      "INITIALIZATION",
	})

	type source struct {
		name   string
		ingest func(ctx context.Context, r io.Reader, batchSize int) (*FileIngestionResult, error)
	}
	sources := []source{
		{StatusFile, s.IngestStatus},
		{BusinessHoursFile, s.IngestBusinessHours},
		{TimezonesFile, s.IngestTimezones},
	}

	var present []string
	for _, src := range sources {
		path := filepath.Join(dataDir, src.name)
		if _, err := os.Stat(path); err == nil {
			present = append(present, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	if len(present) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}

	if opts.Truncate {
		if err := s.repo.TruncateAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to truncate existing data: %w", err)
		}
	}

	result := &IngestionResult{
		Errors: make([]string, 0),
	}

	for _, src := range sources {
		path := filepath.Join(dataDir, src.name)
		fileLog := s.logger.WithFields(logging.Fields{"file_path": path})
		fileResult, err := s.ingestPath(ctx, path, opts.BatchSize, src.ingest)
		if errors.Is(err, os.ErrNotExist) {
			fileLog.Warn(ctx, "[INGEST_FILE_MISSING] Data file not found, skipping", logging.Fields{
				"stage": "FILE_DISCOVERY",
			})
			continue
		}
		result.TotalFiles++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", path, err))
			fileLog.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"stage": "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.Files = append(result.Files, fileResult)
		result.TotalRecords += fileResult.TotalRecords
		result.SuccessfulRecords += fileResult.SuccessfulRecords
		result.FailedRecords += fileResult.FailedRecords
		result.Errors = append(result.Errors, fileResult.RowErrors...)

		fileLog.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested successfully", logging.Fields{
			"dataset":            fileResult.Dataset,
			"total_records":      fileResult.TotalRecords,
			"successful_records": fileResult.SuccessfulRecords,
			"failed_records":     fileResult.FailedRecords,
			"stage":              "FILE_COMPLETE",
		})
	}

	result.Duration = timer.ObserveDuration()

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) ingestPath(ctx context.Context, path string, batchSize int, ingest func(context.Context, io.Reader, int) (*FileIngestionResult, error)) (*FileIngestionResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	res, err := ingest(ctx, file, batchSize)
	if res != nil {
		res.Path = path
	}
	return res, err
}

// IngestStatus reads store_status.csv rows: store_id,status,timestamp_utc
func (s *IngestionService) IngestStatus(ctx context.Context, r io.Reader, batchSize int) (*FileIngestionResult, error) {
	return ingestCSV(ctx, s, r, batchSize, csvSource[models.Observation]{
		dataset: "store_status",
		columns: [][]string{{"store_id"}, {"status"}, {"timestamp_utc", "timestamp"}},
		parse: func(f []string) (*models.Observation, error) {
			return (&models.RawStatusRecord{StoreID: f[0], Status: f[1], TimestampUTC: f[2]}).ToObservation()
		},
		insert: s.repo.CreateObservationsBatch,
	})
}

// IngestBusinessHours reads menu_hours.csv rows: store_id,dayOfWeek,start_time_local,end_time_local
func (s *IngestionService) IngestBusinessHours(ctx context.Context, r io.Reader, batchSize int) (*FileIngestionResult, error) {
	return ingestCSV(ctx, s, r, batchSize, csvSource[models.BusinessHourRule]{
		dataset: "business_hours",
		columns: [][]string{{"store_id"}, {"dayofweek", "day_of_week", "day"}, {"start_time_local"}, {"end_time_local"}},
		parse: func(f []string) (*models.BusinessHourRule, error) {
			return (&models.RawBusinessHoursRecord{StoreID: f[0], DayOfWeek: f[1], StartTimeLocal: f[2], EndTimeLocal: f[3]}).ToRule()
		},
		insert: s.repo.CreateBusinessHoursBatch,
	})
}

// IngestTimezones reads timezones.csv rows: store_id,timezone_str
func (s *IngestionService) IngestTimezones(ctx context.Context, r io.Reader, batchSize int) (*FileIngestionResult, error) {
	return ingestCSV(ctx, s, r, batchSize, csvSource[models.StoreTimezone]{
		dataset: "store_timezones",
		columns: [][]string{{"store_id"}, {"timezone_str", "timezone"}},
		parse: func(f []string) (*models.StoreTimezone, error) {
			return (&models.RawTimezoneRecord{StoreID: f[0], TimezoneName: f[1]}).ToTimezone()
		},
		insert: s.repo.UpsertTimezonesBatch,
	})
}

// csvSource describes one input file. columns lists accepted header names per field,
// in the order parse receives them.
type csvSource[T any] struct {
	dataset string
	columns [][]string
	parse   func(fields []string) (*T, error)
	insert  func(ctx context.Context, batch []*T) error
}

func ingestCSV[T any](ctx context.Context, s *IngestionService, r io.Reader, batchSize int, src csvSource[T]) (*FileIngestionResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty file: header row required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index, err := columnIndex(header, src.columns)
	if err != nil {
		return nil, err
	}

	result := &FileIngestionResult{Dataset: src.dataset}
	batch := make([]*T, 0, batchSize)
	fields := make([]string, len(index))

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := src.insert(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		result.TotalRecords++

		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("failed to read %s: %w", src.dataset, err)
			}
			s.rowFailed(ctx, result, perr.Line, "parse_error", err)
			continue
		}
		line, _ := reader.FieldPos(0)

		missing := false
		for i, col := range index {
			if col >= len(record) {
				missing = true
				break
			}
			fields[i] = record[col]
		}
		if missing {
			s.rowFailed(ctx, result, line, "parse_error", fmt.Errorf("expected %d fields, got %d", len(header), len(record)))
			continue
		}

		item, err := src.parse(fields)
		if err != nil {
			s.rowFailed(ctx, result, line, "validation_error", err)
			continue
		}

		batch = append(batch, item)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *IngestionService) rowFailed(ctx context.Context, result *FileIngestionResult, line int, kind string, err error) {
	result.FailedRecords++
	s.metrics.RecordIngestionError(kind)
	if len(result.RowErrors) < maxReportedRowErrors {
		result.RowErrors = append(result.RowErrors, fmt.Sprintf("%s line %d: %v", result.Dataset, line, err))
	}
	s.logger.Debug(ctx, "[INGEST_ROW_REJECTED] Row rejected", logging.Fields{
		"dataset": result.Dataset,
		"line":    line,
		"kind":    kind,
		"error":   err.Error(),
	})
}

// columnIndex maps each wanted field to its position in header
func columnIndex(header []string, wanted [][]string) ([]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := positions[h]; !dup {
			positions[h] = i
		}
	}

	index := make([]int, len(wanted))
	for i, names := range wanted {
		found := false
		for _, name := range names {
			if pos, ok := positions[name]; ok {
				index[i] = pos
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("missing required column %q in header %v", names[0], header)
		}
	}
	return index, nil
}
