// Package uptime turns sparse status samples and business-hour schedules into
// open-time uptime and downtime totals.
package uptime

import (
	"fmt"
	"time"

	"store-monitor/internal/models"
)

// Window is a half-open UTC range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the window length, zero for an empty or inverted window.
func (w Window) Duration() time.Duration {
	if !w.End.After(w.Start) {
		return 0
	}
	return w.End.Sub(w.Start)
}

// Empty reports whether the window contains no instant.
func (w Window) Empty() bool {
	return !w.End.After(w.Start)
}

// Interval is a half-open UTC range with a single known status.
type Interval struct {
	Start  time.Time
	End    time.Time
	Status models.Status
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Totals accumulates open time split by status.
type Totals struct {
	Uptime   time.Duration
	Downtime time.Duration
	Open     time.Duration
}

// Add returns the component-wise sum.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Uptime:   t.Uptime + o.Uptime,
		Downtime: t.Downtime + o.Downtime,
		Open:     t.Open + o.Open,
	}
}

// ComputationError is an unexpected failure while computing one store.
type ComputationError struct {
	StoreID string
	Window  string
	Err     error
}

func (e *ComputationError) Error() string {
	if e.Window == "" {
		return fmt.Sprintf("compute store %s: %v", e.StoreID, e.Err)
	}
	return fmt.Sprintf("compute store %s (%s): %v", e.StoreID, e.Window, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// IsTransient returns false; a failed computation is not retried.
func (e *ComputationError) IsTransient() bool {
	return false
}
