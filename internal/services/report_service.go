package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/internal/timezone"
	"store-monitor/internal/uptime"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

// trailing is one of the three report windows measured back from the reference instant
type trailing struct {
	name   string
	length time.Duration
	unit   time.Duration
}

var trailingWindows = [3]trailing{
	{name: "last_hour", length: time.Hour, unit: time.Minute},
	{name: "last_day", length: 24 * time.Hour, unit: time.Hour},
	{name: "last_week", length: 7 * 24 * time.Hour, unit: time.Hour},
}

// ReportOptions tunes report computation
type ReportOptions struct {
	Universe       models.Universe
	Fallback       models.Status
	Workers        int
	StoreBatchSize int
}

// Report is a finished computation over one snapshot
type Report struct {
	ReferenceTime time.Time
	Rows          []models.ReportRow
	DataGaps      int
}

// ReportService computes per-store uptime rows over a data snapshot
type ReportService struct {
	repo      repository.StoreRepository
	converter *timezone.Converter
	opts      ReportOptions
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewReportService creates a new report service
func NewReportService(repo repository.StoreRepository, converter *timezone.Converter, opts ReportOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ReportService {
	if opts.Universe == "" {
		opts.Universe = models.UniverseObservations
	}
	if opts.Fallback == "" {
		opts.Fallback = models.StatusActive
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.StoreBatchSize <= 0 {
		opts.StoreBatchSize = 500
	}
	return &ReportService{
		repo:      repo,
		converter: converter,
		opts:      opts,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// Generate loads a fresh snapshot and computes the report over it
func (s *ReportService) Generate(ctx context.Context) (*Report, error) {
	ds, err := s.repo.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return s.GenerateFrom(ctx, ds)
}

// GenerateFrom computes one row per store in the configured universe, ordered by
// store id. Any store failure fails the whole report.
func (s *ReportService) GenerateFrom(ctx context.Context, ds *models.Dataset) (*Report, error) {
	now := ds.ReferenceTime()
	storeIDs := ds.StoreIDs(s.opts.Universe)
	rows := make([]models.ReportRow, len(storeIDs))
	gaps := make([]int, len(storeIDs))

	s.logger.Info(ctx, "[REPORT_START] Computing report", logging.Fields{
		"reference_time": now.Format(time.RFC3339Nano),
		"stores":         len(storeIDs),
		"universe":       string(s.opts.Universe),
		"workers":        s.opts.Workers,
	})

	for lo := 0; lo < len(storeIDs); lo += s.opts.StoreBatchSize {
		hi := min(lo+s.opts.StoreBatchSize, len(storeIDs))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Workers)
		for i := lo; i < hi; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				row, n, err := s.ComputeStore(gctx, ds, storeIDs[i], now)
				if err != nil {
					return err
				}
				rows[i] = row
				gaps[i] = n
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		s.logger.Debug(ctx, "[REPORT_BATCH] Store batch computed", logging.Fields{
			"from": lo,
			"to":   hi,
		})
	}

	report := &Report{ReferenceTime: now, Rows: rows}
	for _, n := range gaps {
		report.DataGaps += n
	}
	return report, nil
}

// ComputeStore produces the row for one store. It returns the number of windows that
// had no sample inside them. Panics are converted into a ComputationError.
func (s *ReportService) ComputeStore(ctx context.Context, ds *models.Dataset, storeID string, now time.Time) (row models.ReportRow, gaps int, err error) {
	timer := s.metrics.NewTimer(s.metrics.StoreComputationDuration)
	defer func() {
		if r := recover(); r != nil {
			err = &uptime.ComputationError{StoreID: storeID, Err: fmt.Errorf("panic: %v", r)}
		}
		timer.ObserveDuration()
		s.metrics.ReportStoresTotal.Inc()
	}()
	storeLog := s.logger.WithFields(logging.Fields{"store_id": storeID})

	zone, _ := ds.Timezone(storeID)
	loc := s.converter.Location(ctx, zone)

	schedule, ruleErrs := uptime.NewSchedule(storeID, ds.Rules(storeID))
	for _, ruleErr := range ruleErrs {
		field := "unknown"
		var verr *models.ValidationError
		if errors.As(ruleErr, &verr) {
			field = verr.Field
		}
		s.metrics.RecordSkippedRule(field)
		storeLog.Warn(ctx, "[RULE_SKIPPED] Invalid business-hour rule ignored", logging.Fields{
			"field": field,
			"error": ruleErr.Error(),
		})
	}

	interp := uptime.Interpolator{Fallback: s.opts.Fallback}
	row.StoreID = storeID
	for _, w := range trailingWindows {
		r := uptime.Window{Start: now.Add(-w.length), End: now}
		totals, series := uptime.Measure(schedule, loc, interp, ds.ObservationsAround(storeID, r.Start, r.End), r)
		if totals.Uptime < 0 || totals.Downtime < 0 {
			return row, gaps, &uptime.ComputationError{StoreID: storeID, Window: w.name, Err: fmt.Errorf("negative duration: %v/%v", totals.Uptime, totals.Downtime)}
		}

		if series.DataGap {
			gaps++
			s.metrics.RecordDataGap(w.name)
			storeLog.Debug(ctx, "[DATA_GAP] No samples inside window", logging.Fields{
				"window":   w.name,
				"fallback": series.Fallback,
			})
		}

		up, down := toUnits(totals, w.unit)
		switch w.name {
		case "last_hour":
			row.UptimeLastHour, row.DowntimeLastHour = up, down
		case "last_day":
			row.UptimeLastDay, row.DowntimeLastDay = up, down
		case "last_week":
			row.UptimeLastWeek, row.DowntimeLastWeek = up, down
		}
	}
	return row, gaps, nil
}

// toUnits converts totals to the report unit rounded to two decimals, keeping the
// rounded sum within the rounded open time.
func toUnits(t uptime.Totals, unit time.Duration) (float64, float64) {
	up := round2(float64(t.Uptime) / float64(unit))
	down := round2(float64(t.Downtime) / float64(unit))
	open := round2(float64(t.Open) / float64(unit))
	if up > open {
		up = open
	}
	if up+down > open {
		down = round2(open - up)
	}
	return up, down
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
