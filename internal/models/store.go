package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the sampled state of a store.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus accepts "active" or "inactive" in any case.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Observation is one status sample for a store
type Observation struct {
	StoreID      string    `json:"store_id" db:"store_id"`
	TimestampUTC time.Time `json:"timestamp_utc" db:"timestamp_utc"`
	Status       Status    `json:"status" db:"status"`
}

// BusinessHourRule is one local opening span for a day of week.
// DayOfWeek is 0 = Monday through 6 = Sunday. An end before the start
// continues past midnight into the next day.
type BusinessHourRule struct {
	StoreID        string `json:"store_id" db:"store_id"`
	DayOfWeek      int    `json:"day_of_week" db:"day_of_week"`
	StartTimeLocal string `json:"start_time_local" db:"start_time_local"`
	EndTimeLocal   string `json:"end_time_local" db:"end_time_local"`
}

// StoreTimezone maps a store onto an IANA zone name
type StoreTimezone struct {
	StoreID      string `json:"store_id" db:"store_id"`
	TimezoneName string `json:"timezone_str" db:"timezone_str"`
}

// WeekdayIndex converts a time.Weekday onto the Monday-based day index used by rules.
func WeekdayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// ParseClock parses a local time of day in HH:MM:SS or HH:MM form and returns the
// offset from local midnight. "24:00" and "24:00:00" are accepted as end of day.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM:SS or HH:MM", s)
	}

	var fields [3]int
	for i, p := range parts {
		if p == "" {
			return 0, fmt.Errorf("invalid time of day %q: empty field", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
		fields[i] = n
	}
	h, m, sec := fields[0], fields[1], fields[2]

	if h == 24 && m == 0 && sec == 0 {
		return 24 * time.Hour, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}
