package models

import (
	"errors"
	"testing"
	"time"
)

// TestRawStatusRecord_ToObservation covers timestamp layouts and status parsing
func TestRawStatusRecord_ToObservation(t *testing.T) {
	tests := []struct {
		name      string
		record    RawStatusRecord
		wantErr   string
		wantTime  time.Time
		wantState Status
	}{
		{
			name:      "source export format with UTC suffix",
			record:    RawStatusRecord{StoreID: "8419537941919820732", Status: "active", TimestampUTC: "2023-01-22 12:09:39.388884 UTC"},
			wantTime:  time.Date(2023, 1, 22, 12, 9, 39, 388884000, time.UTC),
			wantState: StatusActive,
		},
		{
			name:      "no fractional seconds",
			record:    RawStatusRecord{StoreID: "s1", Status: "inactive", TimestampUTC: "2023-01-24 09:06:42 UTC"},
			wantTime:  time.Date(2023, 1, 24, 9, 6, 42, 0, time.UTC),
			wantState: StatusInactive,
		},
		{
			name:      "RFC3339 with offset is normalized to UTC",
			record:    RawStatusRecord{StoreID: "s1", Status: "Active", TimestampUTC: "2023-01-24T04:00:00-05:00"},
			wantTime:  time.Date(2023, 1, 24, 9, 0, 0, 0, time.UTC),
			wantState: StatusActive,
		},
		{
			name:      "zone-less value is read as UTC",
			record:    RawStatusRecord{StoreID: "s1", Status: "active", TimestampUTC: "2023-01-24 09:00:00"},
			wantTime:  time.Date(2023, 1, 24, 9, 0, 0, 0, time.UTC),
			wantState: StatusActive,
		},
		{
			name:    "unknown status",
			record:  RawStatusRecord{StoreID: "s1", Status: "closed", TimestampUTC: "2023-01-24 09:00:00 UTC"},
			wantErr: "status",
		},
		{
			name:    "garbage timestamp",
			record:  RawStatusRecord{StoreID: "s1", Status: "active", TimestampUTC: "yesterday"},
			wantErr: "timestamp_utc",
		},
		{
			name:    "missing store id",
			record:  RawStatusRecord{StoreID: "  ", Status: "active", TimestampUTC: "2023-01-24 09:00:00 UTC"},
			wantErr: "store_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := tt.record.ToObservation()
			if tt.wantErr != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("ToObservation() error = %v, want ValidationError", err)
				}
				if verr.Field != tt.wantErr {
					t.Errorf("Field = %s, want %s", verr.Field, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToObservation() unexpected error: %v", err)
			}
			if !obs.TimestampUTC.Equal(tt.wantTime) {
				t.Errorf("TimestampUTC = %v, want %v", obs.TimestampUTC, tt.wantTime)
			}
			if obs.TimestampUTC.Location() != time.UTC {
				t.Errorf("TimestampUTC location = %v, want UTC", obs.TimestampUTC.Location())
			}
			if obs.Status != tt.wantState {
				t.Errorf("Status = %v, want %v", obs.Status, tt.wantState)
			}
		})
	}
}

func TestRawBusinessHoursRecord_ToRule(t *testing.T) {
	tests := []struct {
		name      string
		record    RawBusinessHoursRecord
		wantField string
	}{
		{"valid", RawBusinessHoursRecord{"s1", "0", "09:00:00", "17:00:00"}, ""},
		{"overnight", RawBusinessHoursRecord{"s1", "6", "22:00:00", "06:00:00"}, ""},
		{"short clock", RawBusinessHoursRecord{"s1", "3", "09:00", "17:30"}, ""},
		{"day out of range", RawBusinessHoursRecord{"s1", "7", "09:00:00", "17:00:00"}, "day_of_week"},
		{"negative day", RawBusinessHoursRecord{"s1", "-1", "09:00:00", "17:00:00"}, "day_of_week"},
		{"non numeric day", RawBusinessHoursRecord{"s1", "Mon", "09:00:00", "17:00:00"}, "day_of_week"},
		{"bad start", RawBusinessHoursRecord{"s1", "1", "9am", "17:00:00"}, "start_time_local"},
		{"bad end", RawBusinessHoursRecord{"s1", "1", "09:00:00", "25:00:00"}, "end_time_local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := tt.record.ToRule()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ToRule() unexpected error: %v", err)
				}
				if rule.StoreID != "s1" {
					t.Errorf("StoreID = %s, want s1", rule.StoreID)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ToRule() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", verr.Field, tt.wantField)
			}
			if verr.IsTransient() {
				t.Error("ValidationError should not be transient")
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:00", 0, false},
		{"09:30:15", 9*time.Hour + 30*time.Minute + 15*time.Second, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"24:00:00", 24 * time.Hour, false},
		{"24:00", 24 * time.Hour, false},
		{"24:01", 0, true},
		{"12", 0, true},
		{"12::00", 0, true},
		{"aa:bb", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRawTimezoneRecord_ToTimezone(t *testing.T) {
	tz, err := (&RawTimezoneRecord{StoreID: "s1", TimezoneName: " Asia/Beirut "}).ToTimezone()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tz.TimezoneName != "Asia/Beirut" {
		t.Errorf("TimezoneName = %q", tz.TimezoneName)
	}

	// unknown names are kept; the report falls back at computation time
	if _, err := (&RawTimezoneRecord{StoreID: "s1", TimezoneName: "Not/AZone"}).ToTimezone(); err != nil {
		t.Errorf("unknown zone should be accepted at ingestion: %v", err)
	}
	if _, err := (&RawTimezoneRecord{StoreID: "s1"}).ToTimezone(); err == nil {
		t.Error("empty zone should be rejected")
	}
}

func TestWeekdayIndex(t *testing.T) {
	if got := WeekdayIndex(time.Monday); got != 0 {
		t.Errorf("Monday = %d, want 0", got)
	}
	if got := WeekdayIndex(time.Sunday); got != 6 {
		t.Errorf("Sunday = %d, want 6", got)
	}
}
