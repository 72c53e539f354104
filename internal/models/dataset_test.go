package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2023, 1, 25, 12, 0, 0, 0, time.UTC)

func obs(store string, offset time.Duration, s Status) Observation {
	return Observation{StoreID: store, TimestampUTC: base.Add(offset), Status: s}
}

func TestDataset_ReferenceTimeAndUniverse(t *testing.T) {
	ds := NewDataset(
		[]Observation{
			obs("b", 2*time.Hour, StatusActive),
			obs("a", time.Hour, StatusInactive),
		},
		[]BusinessHourRule{{StoreID: "c", DayOfWeek: 0, StartTimeLocal: "09:00:00", EndTimeLocal: "17:00:00"}},
		[]StoreTimezone{{StoreID: "a", TimezoneName: "Asia/Tokyo"}},
		base,
	)

	assert.Equal(t, base.Add(2*time.Hour), ds.ReferenceTime())
	assert.Equal(t, []string{"a", "b"}, ds.StoreIDs(UniverseObservations))
	assert.Equal(t, []string{"c"}, ds.StoreIDs(UniverseBusinessHours))
	assert.Equal(t, []string{"a", "b", "c"}, ds.StoreIDs(UniverseUnion))

	zone, ok := ds.Timezone("a")
	assert.True(t, ok)
	assert.Equal(t, "Asia/Tokyo", zone)
	_, ok = ds.Timezone("b")
	assert.False(t, ok)

	stats := ds.Stats()
	assert.Equal(t, 2, stats.Observations)
	assert.Equal(t, 1, stats.Rules)
}

func TestDataset_EmptyReferenceFallsBackToLoadTime(t *testing.T) {
	ds := NewDataset(nil, nil, nil, base)
	assert.Equal(t, base, ds.ReferenceTime())
	assert.Empty(t, ds.StoreIDs(UniverseObservations))
}

func TestDataset_SortsStablyPerStore(t *testing.T) {
	ds := NewDataset([]Observation{
		obs("s", 3*time.Minute, StatusActive),
		obs("s", time.Minute, StatusActive),
		obs("s", 2*time.Minute, StatusInactive),
		obs("s", 2*time.Minute, StatusActive),
	}, nil, nil, base)

	series := ds.Observations("s")
	require.Len(t, series, 4)
	assert.Equal(t, base.Add(time.Minute), series[0].TimestampUTC)
	// equal instants keep input order
	assert.Equal(t, StatusInactive, series[1].Status)
	assert.Equal(t, StatusActive, series[2].Status)
}

func TestDataset_ObservationsAround(t *testing.T) {
	ds := NewDataset([]Observation{
		obs("s", 0, StatusActive),
		obs("s", 10*time.Minute, StatusInactive),
		obs("s", 20*time.Minute, StatusActive),
		obs("s", 30*time.Minute, StatusInactive),
		obs("s", 40*time.Minute, StatusActive),
	}, nil, nil, base)

	tests := []struct {
		name       string
		start, end time.Duration
		want       []time.Duration
	}{
		{"interior range carries both neighbours", 15 * time.Minute, 35 * time.Minute, []time.Duration{10 * time.Minute, 20 * time.Minute, 30 * time.Minute, 40 * time.Minute}},
		{"start on a sample", 10 * time.Minute, 20 * time.Minute, []time.Duration{0, 10 * time.Minute, 20 * time.Minute}},
		{"before everything", -time.Hour, -30 * time.Minute, []time.Duration{0}},
		{"after everything", time.Hour, 2 * time.Hour, []time.Duration{40 * time.Minute}},
		{"empty gap between samples", 11 * time.Minute, 12 * time.Minute, []time.Duration{10 * time.Minute, 20 * time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ds.ObservationsAround("s", base.Add(tt.start), base.Add(tt.end))
			offsets := make([]time.Duration, len(got))
			for i, o := range got {
				offsets[i] = o.TimestampUTC.Sub(base)
			}
			assert.Equal(t, tt.want, offsets)
		})
	}

	assert.Nil(t, ds.ObservationsAround("missing", base, base.Add(time.Hour)))
}

func TestReportJob_CloneIsDeep(t *testing.T) {
	now := base
	job := &ReportJob{
		ReportID:    "r1",
		State:       JobComplete,
		CompletedAt: &now,
		Rows:        []ReportRow{{StoreID: "s1", UptimeLastHour: 60}},
	}

	clone := job.Clone()
	clone.Rows[0].UptimeLastHour = 0
	*clone.CompletedAt = now.Add(time.Hour)

	assert.Equal(t, 60.0, job.Rows[0].UptimeLastHour)
	assert.Equal(t, now, *job.CompletedAt)
	assert.True(t, JobComplete.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
}
