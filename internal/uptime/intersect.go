package uptime

import (
	"time"

	"store-monitor/internal/models"
)

// Intersect sums, per status, the overlap between intervals and open windows.
// Both inputs must be ordered and internally disjoint. Time outside every window
// counts towards neither uptime nor downtime.
func Intersect(intervals []Interval, windows []Window) Totals {
	var t Totals
	for _, w := range windows {
		t.Open += w.Duration()
	}

	i, j := 0, 0
	for i < len(intervals) && j < len(windows) {
		iv, w := intervals[i], windows[j]

		start := later(iv.Start, w.Start)
		end := earlier(iv.End, w.End)
		if end.After(start) {
			switch iv.Status {
			case models.StatusActive:
				t.Uptime += end.Sub(start)
			case models.StatusInactive:
				t.Downtime += end.Sub(start)
			}
		}

		if iv.End.Before(w.End) {
			i++
		} else {
			j++
		}
	}

	if t.Uptime > t.Open {
		t.Uptime = t.Open
	}
	if t.Uptime+t.Downtime > t.Open {
		t.Downtime = t.Open - t.Uptime
	}
	return t
}

// Measure runs the full pipeline for one store over one range.
func Measure(s *Schedule, loc *time.Location, p Interpolator, obs []models.Observation, r Window) (Totals, Series) {
	series := p.Interpolate(obs, r)
	return Intersect(series.Intervals, s.OpenWindows(loc, r)), series
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
