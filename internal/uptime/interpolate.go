package uptime

import (
	"time"

	"store-monitor/internal/models"
)

// Interpolator fills the time between status samples.
//
// The status at any instant is that of the latest sample at or before it. Before
// the first sample the first sample's status holds. With no samples at all the
// Fallback status covers the range.
type Interpolator struct {
	Fallback models.Status
}

// Series is the interpolated status of one store over one range.
type Series struct {
	Intervals []Interval
	// DataGap is set when no sample falls inside the range.
	DataGap bool
	// Fallback is set when there were no samples to extrapolate from.
	Fallback bool
}

// Interpolate tiles r with status intervals. obs must be sorted by timestamp and may
// include neighbours outside r; equal timestamps resolve to the later entry.
func (p Interpolator) Interpolate(obs []models.Observation, r Window) Series {
	if r.Empty() {
		return Series{}
	}
	if len(obs) == 0 {
		return Series{
			Intervals: []Interval{{Start: r.Start, End: r.End, Status: p.Fallback}},
			DataGap:   true,
			Fallback:  true,
		}
	}

	series := Series{DataGap: true}
	status := obs[0].Status
	i := 0
	for ; i < len(obs) && !obs[i].TimestampUTC.After(r.Start); i++ {
		status = obs[i].Status
		if obs[i].TimestampUTC.Equal(r.Start) {
			series.DataGap = false
		}
	}

	cursor := r.Start
	for ; i < len(obs) && obs[i].TimestampUTC.Before(r.End); i++ {
		series.DataGap = false
		at := obs[i].TimestampUTC
		if obs[i].Status == status {
			continue
		}
		series.Intervals = appendMerged(series.Intervals, cursor, at, status)
		cursor = at
		status = obs[i].Status
	}
	series.Intervals = appendMerged(series.Intervals, cursor, r.End, status)
	return series
}

func appendMerged(out []Interval, start, end time.Time, status models.Status) []Interval {
	if !end.After(start) {
		return out
	}
	if n := len(out); n > 0 && out[n-1].Status == status && out[n-1].End.Equal(start) {
		out[n-1].End = end
		return out
	}
	return append(out, Interval{Start: start, End: end, Status: status})
}
