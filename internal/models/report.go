package models

import (
	"time"
)

// ReportHeader is the fixed column order of the report file
var ReportHeader = []string{
	"store_id",
	"uptime_last_hour",
	"uptime_last_day",
	"uptime_last_week",
	"downtime_last_hour",
	"downtime_last_day",
	"downtime_last_week",
}

// ReportRow holds one store's results. Hour values are minutes, day and week values are hours.
type ReportRow struct {
	StoreID          string  `json:"store_id"`
	UptimeLastHour   float64 `json:"uptime_last_hour"`
	UptimeLastDay    float64 `json:"uptime_last_day"`
	UptimeLastWeek   float64 `json:"uptime_last_week"`
	DowntimeLastHour float64 `json:"downtime_last_hour"`
	DowntimeLastDay  float64 `json:"downtime_last_day"`
	DowntimeLastWeek float64 `json:"downtime_last_week"`
}

// Values returns the numeric columns in header order.
func (r ReportRow) Values() []float64 {
	return []float64{
		r.UptimeLastHour,
		r.UptimeLastDay,
		r.UptimeLastWeek,
		r.DowntimeLastHour,
		r.DowntimeLastDay,
		r.DowntimeLastWeek,
	}
}

// JobState is the lifecycle state of a report job
type JobState string

const (
	JobRunning  JobState = "Running"
	JobComplete JobState = "Complete"
	JobFailed   JobState = "Failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobState) IsTerminal() bool {
	return s == JobComplete || s == JobFailed
}

// ReportJob tracks one triggered report. Rows and FilePath are set only when Complete,
// Error only when Failed.
type ReportJob struct {
	ReportID      string      `json:"report_id"`
	State         JobState    `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	ReferenceTime *time.Time  `json:"reference_time,omitempty"`
	Rows          []ReportRow `json:"-"`
	FilePath      string      `json:"-"`
	Error         string      `json:"error,omitempty"`
}

// Clone returns a deep copy so callers never share the registry's slices.
func (j *ReportJob) Clone() *ReportJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.Rows != nil {
		out.Rows = make([]ReportRow, len(j.Rows))
		copy(out.Rows, j.Rows)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.ReferenceTime != nil {
		t := *j.ReferenceTime
		out.ReferenceTime = &t
	}
	return &out
}
