package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/internal/timezone"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

// t0 is a Wednesday
var t0 = time.Date(2023, time.January, 25, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func observation(store string, ts time.Time, s models.Status) *models.Observation {
	return &models.Observation{StoreID: store, TimestampUTC: ts, Status: s}
}

// gatedRepo delays or fails snapshot loading
type gatedRepo struct {
	*repository.MemoryStoreRepository
	gate chan struct{}
	err  error
}

func (g *gatedRepo) LoadSnapshot(ctx context.Context) (*models.Dataset, error) {
	if g.gate != nil {
		<-g.gate
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.MemoryStoreRepository.LoadSnapshot(ctx)
}

func newConverter(t *testing.T) *timezone.Converter {
	t.Helper()
	conv, err := timezone.NewConverter("America/Chicago", logging.NewNopLogger(), metrics.NewNopCollector())
	require.NoError(t, err)
	return conv
}

func newReportService(t *testing.T, repo repository.StoreRepository, opts ReportOptions) *ReportService {
	t.Helper()
	return NewReportService(repo, newConverter(t), opts, logging.NewNopLogger(), metrics.NewNopCollector())
}

// seedScenario loads the half-hour scenario plus a second store that fixes the
// reference instant at t0+1h
func seedScenario(t *testing.T, repo *repository.MemoryStoreRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateObservationsBatch(ctx, []*models.Observation{
		observation("store_0001", at(0), models.StatusActive),
		observation("store_0001", at(30*time.Minute), models.StatusInactive),
		observation("store_0002", at(-2*time.Hour), models.StatusActive),
		observation("store_0002", at(time.Hour), models.StatusActive),
	}))
}
