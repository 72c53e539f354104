package models

import (
	"sort"
	"time"
)

// Universe selects which stores a report covers.
type Universe string

const (
	UniverseObservations  Universe = "observations"
	UniverseBusinessHours Universe = "business_hours"
	UniverseUnion         Universe = "union"
)

// Dataset is an immutable snapshot of observations, business hours and timezones,
// indexed by store. It is safe for concurrent readers.
type Dataset struct {
	observations map[string][]Observation
	rules        map[string][]BusinessHourRule
	timezones    map[string]string
	maxTimestamp time.Time
	loadedAt     time.Time
	obsCount     int
	ruleCount    int
}

// NewDataset indexes the given rows. Observations are stably sorted per store so that
// samples sharing an instant keep their input order.
func NewDataset(observations []Observation, rules []BusinessHourRule, timezones []StoreTimezone, loadedAt time.Time) *Dataset {
	d := &Dataset{
		observations: make(map[string][]Observation),
		rules:        make(map[string][]BusinessHourRule),
		timezones:    make(map[string]string, len(timezones)),
		loadedAt:     loadedAt.UTC(),
		obsCount:     len(observations),
		ruleCount:    len(rules),
	}

	for _, o := range observations {
		o.TimestampUTC = o.TimestampUTC.UTC()
		d.observations[o.StoreID] = append(d.observations[o.StoreID], o)
		if o.TimestampUTC.After(d.maxTimestamp) {
			d.maxTimestamp = o.TimestampUTC
		}
	}
	for id := range d.observations {
		series := d.observations[id]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].TimestampUTC.Before(series[j].TimestampUTC)
		})
	}

	for _, r := range rules {
		d.rules[r.StoreID] = append(d.rules[r.StoreID], r)
	}
	for _, tz := range timezones {
		d.timezones[tz.StoreID] = tz.TimezoneName
	}

	return d
}

// ReferenceTime is the latest observation timestamp in the snapshot, or the load
// time when the snapshot has no observations.
func (d *Dataset) ReferenceTime() time.Time {
	if d.maxTimestamp.IsZero() {
		return d.loadedAt
	}
	return d.maxTimestamp
}

// StoreIDs returns the sorted store ids in the requested universe.
func (d *Dataset) StoreIDs(universe Universe) []string {
	seen := make(map[string]struct{})
	if universe != UniverseBusinessHours {
		for id := range d.observations {
			seen[id] = struct{}{}
		}
	}
	if universe == UniverseBusinessHours || universe == UniverseUnion {
		for id := range d.rules {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Observations returns the store's full sorted series. Callers must not modify it.
func (d *Dataset) Observations(storeID string) []Observation {
	return d.observations[storeID]
}

// ObservationsAround returns the observations in [start, end) together with the
// nearest one before start and the nearest one at or after end, when they exist.
func (d *Dataset) ObservationsAround(storeID string, start, end time.Time) []Observation {
	series := d.observations[storeID]
	if len(series) == 0 {
		return nil
	}

	i := sort.Search(len(series), func(k int) bool { return !series[k].TimestampUTC.Before(start) })
	j := sort.Search(len(series), func(k int) bool { return !series[k].TimestampUTC.Before(end) })

	lo, hi := i, j
	if lo > 0 {
		lo--
	}
	if hi < len(series) {
		hi++
	}

	out := make([]Observation, hi-lo)
	copy(out, series[lo:hi])
	return out
}

// Rules returns the store's business-hour rules in input order.
func (d *Dataset) Rules(storeID string) []BusinessHourRule {
	return d.rules[storeID]
}

// Timezone returns the store's configured zone name.
func (d *Dataset) Timezone(storeID string) (string, bool) {
	name, ok := d.timezones[storeID]
	return name, ok
}

// DatasetStats summarizes the snapshot size for logging.
type DatasetStats struct {
	ObservationStores int
	Observations      int
	Rules             int
	Timezones         int
}

// Stats returns row counts of the snapshot.
func (d *Dataset) Stats() DatasetStats {
	return DatasetStats{
		ObservationStores: len(d.observations),
		Observations:      d.obsCount,
		Rules:             d.ruleCount,
		Timezones:         len(d.timezones),
	}
}
