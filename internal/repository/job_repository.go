package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"store-monitor/internal/models"
)

var (
	// ErrInvalidTransition is returned when a job that already finished is finished again
	ErrInvalidTransition = errors.New("report job is not running")
	// ErrDuplicateReport is returned when a report id is registered twice
	ErrDuplicateReport = errors.New("report id already registered")
)

// ReportJobRepository is the registry of triggered report jobs
type ReportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	Get(ctx context.Context, reportID string) (*models.ReportJob, error)
	Complete(ctx context.Context, reportID string, result JobResult) error
	Fail(ctx context.Context, reportID string, completedAt time.Time, cause string) error
	Counts(ctx context.Context) map[models.JobState]int
}

// JobResult is the outcome recorded for a completed job
type JobResult struct {
	CompletedAt   time.Time
	ReferenceTime time.Time
	Rows          []models.ReportRow
	FilePath      string
}

// memoryJobRepository keeps jobs in a process-wide map. Entries are written once by
// Create and once more by Complete or Fail; they are never removed.
type memoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*models.ReportJob
}

// NewMemoryJobRepository creates an empty job registry
func NewMemoryJobRepository() ReportJobRepository {
	return &memoryJobRepository{jobs: make(map[string]*models.ReportJob)}
}

// Create registers a new Running job
func (r *memoryJobRepository) Create(_ context.Context, job *models.ReportJob) error {
	if job.State != models.JobRunning {
		return fmt.Errorf("create report %s in state %s: %w", job.ReportID, job.State, ErrInvalidTransition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ReportID]; exists {
		return fmt.Errorf("create report %s: %w", job.ReportID, ErrDuplicateReport)
	}
	r.jobs[job.ReportID] = job.Clone()
	return nil
}

// Get returns a copy of the job
func (r *memoryJobRepository) Get(_ context.Context, reportID string) (*models.ReportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[reportID]
	if !ok {
		return nil, &NotFoundError{Resource: "report", ID: reportID}
	}
	return job.Clone(), nil
}

// Complete moves a Running job to Complete
func (r *memoryJobRepository) Complete(_ context.Context, reportID string, result JobResult) error {
	rows := make([]models.ReportRow, len(result.Rows))
	copy(rows, result.Rows)

	return r.transition(reportID, func(job *models.ReportJob) {
		completedAt := result.CompletedAt
		reference := result.ReferenceTime
		job.State = models.JobComplete
		job.CompletedAt = &completedAt
		job.ReferenceTime = &reference
		job.Rows = rows
		job.FilePath = result.FilePath
	})
}

// Fail moves a Running job to Failed
func (r *memoryJobRepository) Fail(_ context.Context, reportID string, completedAt time.Time, cause string) error {
	return r.transition(reportID, func(job *models.ReportJob) {
		job.State = models.JobFailed
		job.CompletedAt = &completedAt
		job.Error = cause
	})
}

func (r *memoryJobRepository) transition(reportID string, apply func(*models.ReportJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[reportID]
	if !ok {
		return &NotFoundError{Resource: "report", ID: reportID}
	}
	if job.State != models.JobRunning {
		return fmt.Errorf("report %s is %s: %w", reportID, job.State, ErrInvalidTransition)
	}

	next := job.Clone()
	apply(next)
	r.jobs[reportID] = next
	return nil
}

// Counts returns the number of jobs per state
func (r *memoryJobRepository) Counts(_ context.Context) map[models.JobState]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[models.JobState]int{
		models.JobRunning:  0,
		models.JobComplete: 0,
		models.JobFailed:   0,
	}
	for _, job := range r.jobs {
		counts[job.State]++
	}
	return counts
}
