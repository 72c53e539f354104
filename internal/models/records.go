package models

import (
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order when parsing observation timestamps.
// The first one matches "2023-01-22 12:09:39.388884 UTC".
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// RawStatusRecord is one row of store_status.csv
type RawStatusRecord struct {
	StoreID      string
	Status       string
	TimestampUTC string
}

// ToObservation validates the record and converts it to an Observation in UTC
func (r *RawStatusRecord) ToObservation() (*Observation, error) {
	storeID := strings.TrimSpace(r.StoreID)
	if storeID == "" {
		return nil, &ValidationError{Field: "store_id", Value: r.StoreID, Message: "store_id is required"}
	}

	status, err := ParseStatus(r.Status)
	if err != nil {
		return nil, &ValidationError{Field: "status", Value: r.Status, Message: "status must be active or inactive"}
	}

	ts, err := ParseTimestamp(r.TimestampUTC)
	if err != nil {
		return nil, &ValidationError{Field: "timestamp_utc", Value: r.TimestampUTC, Message: "unrecognized timestamp format"}
	}

	return &Observation{StoreID: storeID, TimestampUTC: ts, Status: status}, nil
}

// ParseTimestamp parses a UTC timestamp in any of the accepted layouts.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// RawBusinessHoursRecord is one row of menu_hours.csv
type RawBusinessHoursRecord struct {
	StoreID        string
	DayOfWeek      string
	StartTimeLocal string
	EndTimeLocal   string
}

// ToRule validates the record and converts it to a BusinessHourRule
func (r *RawBusinessHoursRecord) ToRule() (*BusinessHourRule, error) {
	storeID := strings.TrimSpace(r.StoreID)
	if storeID == "" {
		return nil, &ValidationError{Field: "store_id", Value: r.StoreID, Message: "store_id is required"}
	}

	day, err := strconv.Atoi(strings.TrimSpace(r.DayOfWeek))
	if err != nil {
		return nil, &ValidationError{Field: "day_of_week", Value: r.DayOfWeek, Message: "day_of_week must be an integer"}
	}

	rule := &BusinessHourRule{
		StoreID:        storeID,
		DayOfWeek:      day,
		StartTimeLocal: strings.TrimSpace(r.StartTimeLocal),
		EndTimeLocal:   strings.TrimSpace(r.EndTimeLocal),
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate checks the day index and both clock values.
func (b *BusinessHourRule) Validate() error {
	if b.DayOfWeek < 0 || b.DayOfWeek > 6 {
		return &ValidationError{
			Field:   "day_of_week",
			Value:   strconv.Itoa(b.DayOfWeek),
			Message: "day_of_week must be between 0 (Monday) and 6 (Sunday)",
		}
	}
	if _, err := ParseClock(b.StartTimeLocal); err != nil {
		return &ValidationError{Field: "start_time_local", Value: b.StartTimeLocal, Message: err.Error()}
	}
	if _, err := ParseClock(b.EndTimeLocal); err != nil {
		return &ValidationError{Field: "end_time_local", Value: b.EndTimeLocal, Message: err.Error()}
	}
	return nil
}

// RawTimezoneRecord is one row of timezones.csv
type RawTimezoneRecord struct {
	StoreID      string
	TimezoneName string
}

// ToTimezone validates presence of both fields. The zone name itself is checked
// at report time so that an unknown zone degrades to the default instead of being dropped.
func (r *RawTimezoneRecord) ToTimezone() (*StoreTimezone, error) {
	storeID := strings.TrimSpace(r.StoreID)
	if storeID == "" {
		return nil, &ValidationError{Field: "store_id", Value: r.StoreID, Message: "store_id is required"}
	}
	name := strings.TrimSpace(r.TimezoneName)
	if name == "" {
		return nil, &ValidationError{Field: "timezone_str", Value: r.TimezoneName, Message: "timezone_str is required"}
	}
	return &StoreTimezone{StoreID: storeID, TimezoneName: name}, nil
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
