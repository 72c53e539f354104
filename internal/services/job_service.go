package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

// JobService runs report computations in the background and tracks them by id
type JobService struct {
	jobs     repository.ReportJobRepository
	reports  *ReportService
	exporter *ExportService
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector

	slots chan struct{}
	wg    sync.WaitGroup
	newID func() string
	now   func() time.Time
}

// NewJobService creates a job service that runs at most maxConcurrent reports at once.
// Further triggers are accepted and wait for a free slot.
func NewJobService(jobs repository.ReportJobRepository, reports *ReportService, exporter *ExportService, maxConcurrent int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *JobService {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &JobService{
		jobs:     jobs,
		reports:  reports,
		exporter: exporter,
		logger:   logger,
		metrics:  metricsCollector,
		slots:    make(chan struct{}, maxConcurrent),
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Trigger registers a new Running job and starts it without waiting for the result
func (s *JobService) Trigger(ctx context.Context) (*models.ReportJob, error) {
	job := &models.ReportJob{
		ReportID:  s.newID(),
		State:     models.JobRunning,
		CreatedAt: s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to register report job: %w", err)
	}

	s.metrics.ReportJobsRunning.Inc()
	s.logger.Info(ctx, "[JOB_TRIGGERED] Report job registered", logging.Fields{
		"report_id": job.ReportID,
	})

	// The job outlives the triggering request but keeps its logging context.
	runCtx := logging.WithReportID(context.WithoutCancel(ctx), job.ReportID)
	s.wg.Add(1)
	go s.run(runCtx, job.ReportID, job.CreatedAt)

	return job.Clone(), nil
}

// Status returns a snapshot of the job
func (s *JobService) Status(ctx context.Context, reportID string) (*models.ReportJob, error) {
	return s.jobs.Get(ctx, reportID)
}

// Wait blocks until every triggered job has finished
func (s *JobService) Wait() {
	s.wg.Wait()
}

func (s *JobService) run(ctx context.Context, reportID string, createdAt time.Time) {
	defer s.wg.Done()

	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "[JOB_PANIC] Report job panicked", logging.Fields{
				"report_id": reportID,
				"stack":     string(debug.Stack()),
			}, fmt.Errorf("%v", r))
			s.fail(ctx, reportID, started, fmt.Errorf("panic: %v", r))
		}
	}()

	s.logger.Info(ctx, "[JOB_START] Report job started", logging.Fields{
		"report_id":     reportID,
		"queue_wait_ms": s.now().Sub(createdAt).Milliseconds(),
	})

	report, err := s.reports.Generate(ctx)
	if err != nil {
		s.fail(ctx, reportID, started, err)
		return
	}

	var path string
	if s.exporter != nil {
		path, err = s.exporter.SaveCSV(ctx, reportID, report.Rows)
		if err != nil {
			s.fail(ctx, reportID, started, err)
			return
		}
	}

	err = s.jobs.Complete(ctx, reportID, repository.JobResult{
		CompletedAt:   s.now(),
		ReferenceTime: report.ReferenceTime,
		Rows:          report.Rows,
		FilePath:      path,
	})
	if err != nil {
		s.logger.Error(ctx, "[JOB_COMPLETE_ERROR] Failed to record completion", logging.Fields{
			"report_id": reportID,
		}, err)
		return
	}

	s.finished(models.JobComplete, started)
	s.logger.Info(ctx, "[JOB_COMPLETE] Report job completed", logging.Fields{
		"report_id":      reportID,
		"stores":         len(report.Rows),
		"data_gaps":      report.DataGaps,
		"reference_time": report.ReferenceTime.Format(time.RFC3339Nano),
		"duration_ms":    time.Since(started).Milliseconds(),
	})
}

func (s *JobService) fail(ctx context.Context, reportID string, started time.Time, cause error) {
	s.logger.Error(ctx, "[JOB_FAILED] Report job failed", logging.Fields{
		"report_id":   reportID,
		"duration_ms": time.Since(started).Milliseconds(),
	}, cause)

	if err := s.jobs.Fail(ctx, reportID, s.now(), cause.Error()); err != nil {
		s.logger.Error(ctx, "[JOB_FAIL_ERROR] Failed to record failure", logging.Fields{
			"report_id": reportID,
		}, err)
		return
	}
	s.finished(models.JobFailed, started)
}

func (s *JobService) finished(state models.JobState, started time.Time) {
	s.metrics.ReportJobsRunning.Dec()
	s.metrics.RecordJobFinished(string(state), time.Since(started))
}
