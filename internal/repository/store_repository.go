package repository

import (
	"context"
	"fmt"
	"time"

	"store-monitor/internal/models"
	"store-monitor/pkg/database"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

// StoreRepository provides access to the ingested store data
type StoreRepository interface {
	// Ingestion operations
	CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error
	CreateBusinessHoursBatch(ctx context.Context, rules []*models.BusinessHourRule) error
	UpsertTimezonesBatch(ctx context.Context, timezones []*models.StoreTimezone) error
	TruncateAll(ctx context.Context) error

	// LoadSnapshot reads all three datasets as of a single instant
	LoadSnapshot(ctx context.Context) (*models.Dataset, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

const (
	insertObservationQuery = `
		INSERT INTO store_status (store_id, status, timestamp_utc)
		VALUES ($1, $2, $3)
		ON CONFLICT (store_id, timestamp_utc, status) DO NOTHING
	`
	insertBusinessHoursQuery = `
		INSERT INTO business_hours (store_id, day_of_week, start_time_local, end_time_local)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (store_id, day_of_week, start_time_local, end_time_local) DO NOTHING
	`
	upsertTimezoneQuery = `
		INSERT INTO store_timezones (store_id, timezone_str)
		VALUES ($1, $2)
		ON CONFLICT (store_id) DO UPDATE SET
			timezone_str = EXCLUDED.timezone_str,
			updated_at = NOW()
	`

	selectObservationsQuery = `
		SELECT store_id, timestamp_utc, status
		FROM store_status
		ORDER BY store_id, timestamp_utc, id
	`
	selectBusinessHoursQuery = `
		SELECT store_id, day_of_week, start_time_local, end_time_local
		FROM business_hours
		ORDER BY store_id, day_of_week, id
	`
	selectTimezonesQuery = `
		SELECT store_id, timezone_str
		FROM store_timezones
	`
)

// storeRepository implements StoreRepository on PostgreSQL
type storeRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewStoreRepository creates a PostgreSQL-backed store repository
func NewStoreRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) StoreRepository {
	return &storeRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// CreateObservationsBatch inserts status samples in a single transaction
func (r *storeRepository) CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error {
	return r.execBatch(ctx, "store_status", insertObservationQuery, len(observations), func(i int) []interface{} {
		o := observations[i]
		return []interface{}{o.StoreID, string(o.Status), o.TimestampUTC.UTC()}
	})
}

// CreateBusinessHoursBatch inserts business-hour rules in a single transaction
func (r *storeRepository) CreateBusinessHoursBatch(ctx context.Context, rules []*models.BusinessHourRule) error {
	return r.execBatch(ctx, "business_hours", insertBusinessHoursQuery, len(rules), func(i int) []interface{} {
		b := rules[i]
		return []interface{}{b.StoreID, b.DayOfWeek, b.StartTimeLocal, b.EndTimeLocal}
	})
}

// UpsertTimezonesBatch inserts or replaces store timezones in a single transaction
func (r *storeRepository) UpsertTimezonesBatch(ctx context.Context, timezones []*models.StoreTimezone) error {
	return r.execBatch(ctx, "store_timezones", upsertTimezoneQuery, len(timezones), func(i int) []interface{} {
		tz := timezones[i]
		return []interface{}{tz.StoreID, tz.TimezoneName}
	})
}

func (r *storeRepository) execBatch(ctx context.Context, dataset, query string, n int, args func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}

	timer := r.metrics.NewTimer(r.metrics.DBQueryDuration.WithLabelValues("batch_" + dataset))
	defer func() {
		duration := timer.ObserveDuration()
		r.metrics.IngestionBatchSize.Observe(float64(n))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"dataset":     dataset,
			"count":       n,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s statement: %w", dataset, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			r.metrics.RecordDBError("batch_insert_error")
			return fmt.Errorf("failed to insert %s row %d: %w", dataset, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.WithLabelValues(dataset).Add(float64(n))
	return nil
}

// TruncateAll removes every ingested row
func (r *storeRepository) TruncateAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "truncate_all", "TRUNCATE store_status, business_hours, store_timezones")
	if err != nil {
		return fmt.Errorf("failed to truncate store data: %w", err)
	}

	r.logger.Info(ctx, "[REPO_TRUNCATE] Store data cleared", logging.Fields{})
	return nil
}

// LoadSnapshot reads the three tables inside one read-only repeatable-read transaction
func (r *storeRepository) LoadSnapshot(ctx context.Context) (*models.Dataset, error) {
	timer := r.metrics.NewTimer(r.metrics.DBQueryDuration.WithLabelValues("load_snapshot"))

	var (
		observations []models.Observation
		rules        []models.BusinessHourRule
		timezones    []models.StoreTimezone
	)
	err := r.db.ReadSnapshot(ctx, func(tx *database.Tx) error {
		if err := tx.SelectContext(ctx, "select_observations", &observations, selectObservationsQuery); err != nil {
			return fmt.Errorf("failed to load observations: %w", err)
		}
		if err := tx.SelectContext(ctx, "select_business_hours", &rules, selectBusinessHoursQuery); err != nil {
			return fmt.Errorf("failed to load business hours: %w", err)
		}
		if err := tx.SelectContext(ctx, "select_timezones", &timezones, selectTimezonesQuery); err != nil {
			return fmt.Errorf("failed to load timezones: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	for i := range observations {
		observations[i].TimestampUTC = observations[i].TimestampUTC.UTC()
	}

	duration := timer.ObserveDuration()
	r.logger.Info(ctx, "[REPO_SNAPSHOT] Snapshot loaded", logging.Fields{
		"observations": len(observations),
		"rules":        len(rules),
		"timezones":    len(timezones),
		"duration_ms":  duration.Milliseconds(),
	})

	return models.NewDataset(observations, rules, timezones, r.now().UTC()), nil
}

// HealthCheck performs a repository health check
func (r *storeRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
