package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

type jobFixture struct {
	svc     *JobService
	repo    *gatedRepo
	metrics *metrics.Collector
	dir     string
}

func newJobFixture(t *testing.T, gated bool) *jobFixture {
	t.Helper()
	repo := &gatedRepo{MemoryStoreRepository: repository.NewMemoryStoreRepository()}
	if gated {
		repo.gate = make(chan struct{})
	}
	seedScenario(t, repo.MemoryStoreRepository)

	m := metrics.NewNopCollector()
	dir := t.TempDir()
	reports := NewReportService(repo, newConverter(t), ReportOptions{Workers: 2}, logging.NewNopLogger(), m)
	exporter := NewExportService(dir, logging.NewNopLogger(), m)
	svc := NewJobService(repository.NewMemoryJobRepository(), reports, exporter, 2, logging.NewNopLogger(), m)
	return &jobFixture{svc: svc, repo: repo, metrics: m, dir: dir}
}

func waitForState(t *testing.T, svc *JobService, id string, want models.JobState) *models.ReportJob {
	t.Helper()
	var job *models.ReportJob
	require.Eventually(t, func() bool {
		var err error
		job, err = svc.Status(context.Background(), id)
		return err == nil && job.State == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestJobService_Lifecycle(t *testing.T) {
	f := newJobFixture(t, true)
	ctx := context.Background()

	job, err := f.svc.Trigger(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, job.ReportID)
	assert.Equal(t, models.JobRunning, job.State)

	status, err := f.svc.Status(ctx, job.ReportID)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunning, status.State)
	assert.Equal(t, job.CreatedAt, status.CreatedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReportJobsRunning))

	close(f.repo.gate)
	done := waitForState(t, f.svc, job.ReportID, models.JobComplete)

	require.Len(t, done.Rows, 2)
	assert.Equal(t, "store_0001", done.Rows[0].StoreID)
	assert.Equal(t, 30.0, done.Rows[0].UptimeLastHour)
	assert.Equal(t, filepath.Join(f.dir, "report_"+job.ReportID+".csv"), done.FilePath)
	_, err = os.Stat(done.FilePath)
	assert.NoError(t, err)

	// finished results do not change
	again, err := f.svc.Status(ctx, job.ReportID)
	require.NoError(t, err)
	assert.Equal(t, done, again)

	f.svc.Wait()
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ReportJobsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReportJobsTotal.WithLabelValues("Complete")))
}

func TestJobService_UniqueIDs(t *testing.T) {
	f := newJobFixture(t, false)
	ctx := context.Background()

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := f.svc.Trigger(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[job.ReportID], "duplicate id %s", job.ReportID)
			seen[job.ReportID] = true
		}()
	}
	wg.Wait()
	f.svc.Wait()

	assert.Len(t, seen, 20)
	for id := range seen {
		job, err := f.svc.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.JobComplete, job.State)
	}
}

func TestJobService_UnknownID(t *testing.T) {
	f := newJobFixture(t, false)
	_, err := f.svc.Status(context.Background(), "00000000-0000-0000-0000-000000000000")
	var nf *repository.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestJobService_Failure(t *testing.T) {
	f := newJobFixture(t, false)
	f.repo.err = errors.New("snapshot unavailable")

	job, err := f.svc.Trigger(context.Background())
	require.NoError(t, err)

	failed := waitForState(t, f.svc, job.ReportID, models.JobFailed)
	assert.Contains(t, failed.Error, "snapshot unavailable")
	assert.Nil(t, failed.Rows)
	assert.NotNil(t, failed.CompletedAt)

	f.svc.Wait()
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReportJobsTotal.WithLabelValues("Failed")))
}

func TestJobService_StoreFailureFailsWholeJob(t *testing.T) {
	repo := repository.NewMemoryStoreRepository()
	seedScenario(t, repo)
	m := metrics.NewNopCollector()

	// a nil converter makes every store computation panic
	reports := NewReportService(repo, nil, ReportOptions{}, logging.NewNopLogger(), m)
	svc := NewJobService(repository.NewMemoryJobRepository(), reports, nil, 1, logging.NewNopLogger(), m)

	job, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	failed := waitForState(t, svc, job.ReportID, models.JobFailed)
	assert.Contains(t, failed.Error, "compute store")
}

func TestJobService_TriggerOutlivesRequest(t *testing.T) {
	f := newJobFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	job, err := f.svc.Trigger(ctx)
	require.NoError(t, err)
	cancel()

	waitForState(t, f.svc, job.ReportID, models.JobComplete)
}

func TestJobService_DuplicateID(t *testing.T) {
	f := newJobFixture(t, false)
	f.svc.newID = func() string { return "fixed" }

	_, err := f.svc.Trigger(context.Background())
	require.NoError(t, err)
	_, err = f.svc.Trigger(context.Background())
	assert.ErrorIs(t, err, repository.ErrDuplicateReport)
	f.svc.Wait()
}
