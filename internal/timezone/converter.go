// Package timezone converts between UTC instants and store-local civil time.
package timezone

import (
	"context"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

// Date is a civil calendar date with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays returns the date n days later, normalizing across month and year ends.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// After reports whether d is a later date than o.
func (d Date) After(o Date) bool {
	if d.Year != o.Year {
		return d.Year > o.Year
	}
	if d.Month != o.Month {
		return d.Month > o.Month
	}
	return d.Day > o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// LocalDateTime is a wall-clock reading: a date plus the elapsed clock time since
// local midnight. Offset may equal 24h to denote the end of the day.
type LocalDateTime struct {
	Date   Date
	Offset time.Duration
}

// wall returns the reading laid out on a UTC axis, used only for offset arithmetic.
func (l LocalDateTime) wall() time.Time {
	return time.Date(l.Date.Year, l.Date.Month, l.Date.Day, 0, 0, 0, 0, time.UTC).Add(l.Offset)
}

// ToUTCIn resolves a wall-clock reading in loc to a UTC instant.
//
// Readings that occur twice (clocks set back) resolve to the earlier instant. Readings
// that never occur (clocks set forward) resolve to the earlier of the two instants the
// surrounding offsets would produce.
func ToUTCIn(loc *time.Location, l LocalDateTime) time.Time {
	wall := l.wall()

	offsets := [2]int{
		offsetAt(wall.Add(-24*time.Hour), loc),
		offsetAt(wall.Add(24*time.Hour), loc),
	}

	var best time.Time
	found := false
	for _, off := range offsets {
		u := wall.Add(-time.Duration(off) * time.Second)
		if offsetAt(u, loc) != off {
			continue
		}
		if !found || u.Before(best) {
			best = u
			found = true
		}
	}
	if found {
		return best
	}

	a := wall.Add(-time.Duration(offsets[0]) * time.Second)
	b := wall.Add(-time.Duration(offsets[1]) * time.Second)
	if b.Before(a) {
		return b
	}
	return a
}

func offsetAt(t time.Time, loc *time.Location) int {
	_, off := t.In(loc).Zone()
	return off
}

// Converter resolves zone names with a fallback and caches loaded locations.
type Converter struct {
	defaultName string
	defaultLoc  *time.Location
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector

	mu       sync.RWMutex
	cache    map[string]*time.Location
	fallback map[string]bool
}

// NewConverter creates a converter whose fallback is defaultZone.
func NewConverter(defaultZone string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*Converter, error) {
	loc, err := time.LoadLocation(defaultZone)
	if err != nil {
		return nil, fmt.Errorf("load default timezone %q: %w", defaultZone, err)
	}
	return &Converter{
		defaultName: defaultZone,
		defaultLoc:  loc,
		logger:      logger,
		metrics:     metricsCollector,
		cache:       map[string]*time.Location{defaultZone: loc},
		fallback:    make(map[string]bool),
	}, nil
}

// DefaultZone returns the fallback zone name.
func (c *Converter) DefaultZone() string {
	return c.defaultName
}

// Location returns the location for name. An empty name yields the default zone.
// An unknown name also yields the default zone, logged once per name.
func (c *Converter) Location(ctx context.Context, name string) *time.Location {
	if name == "" {
		return c.defaultLoc
	}

	c.mu.RLock()
	loc, ok := c.cache[name]
	fellBack := c.fallback[name]
	c.mu.RUnlock()
	if ok {
		if fellBack {
			c.metrics.TimezoneFallbacksTotal.Inc()
		}
		return loc
	}

	loc, err := time.LoadLocation(name)
	if err == nil {
		c.mu.Lock()
		c.cache[name] = loc
		c.mu.Unlock()
		return loc
	}

	c.mu.Lock()
	_, raced := c.cache[name]
	c.cache[name] = c.defaultLoc
	c.fallback[name] = true
	c.mu.Unlock()

	c.metrics.TimezoneFallbacksTotal.Inc()
	if !raced {
		c.logger.Warn(ctx, "[TZ_FALLBACK] Unknown timezone, using default", logging.Fields{
			"timezone":         name,
			"default_timezone": c.defaultName,
			"error":            err.Error(),
		})
	}
	return c.defaultLoc
}

// ToLocal returns the instant t as seen on wall clocks in zone.
func (c *Converter) ToLocal(ctx context.Context, t time.Time, zone string) time.Time {
	return t.In(c.Location(ctx, zone))
}

// ToUTC resolves a wall-clock reading in zone. See ToUTCIn for the transition policy.
func (c *Converter) ToUTC(ctx context.Context, l LocalDateTime, zone string) time.Time {
	return ToUTCIn(c.Location(ctx, zone), l)
}
