package uptime

import (
	"sort"
	"time"

	"store-monitor/internal/models"
	"store-monitor/internal/timezone"
)

const (
	day = 24 * time.Hour

	// lastSecond is the conventional "until closing" end value.
	lastSecond = day - time.Second
)

type span struct {
	start time.Duration
	end   time.Duration
}

// Schedule is a store's weekly business hours, indexed by Monday-based weekday.
type Schedule struct {
	StoreID    string
	alwaysOpen bool
	days       [7][]span
}

// NewSchedule builds a schedule from raw rules. Invalid rules are skipped and
// returned as errors. A store without any usable rule is open around the clock.
func NewSchedule(storeID string, rules []models.BusinessHourRule) (*Schedule, []error) {
	s := &Schedule{StoreID: storeID}
	var errs []error
	usable := 0

	for i := range rules {
		rule := rules[i]
		if err := rule.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		start, _ := models.ParseClock(rule.StartTimeLocal)
		end, _ := models.ParseClock(rule.EndTimeLocal)
		if start >= day {
			errs = append(errs, &models.ValidationError{
				Field:   "start_time_local",
				Value:   rule.StartTimeLocal,
				Message: "start_time_local must be before 24:00",
			})
			continue
		}
		if end == lastSecond {
			end = day
		}

		usable++
		if start == end {
			continue
		}
		s.days[rule.DayOfWeek] = append(s.days[rule.DayOfWeek], span{start: start, end: end})
	}

	s.alwaysOpen = usable == 0
	return s, errs
}

// AlwaysOpen reports whether the schedule is the 24/7 default.
func (s *Schedule) AlwaysOpen() bool {
	return s.alwaysOpen
}

// ResolveDay returns the UTC open windows of the rules for local date d, ordered by
// start. An overnight rule contributes its tail on the following date; each piece is
// converted with the offset in force on its own date.
func (s *Schedule) ResolveDay(loc *time.Location, d timezone.Date) []Window {
	if s.alwaysOpen {
		return appendWindow(nil, loc, d, 0, d, day)
	}

	var out []Window
	for _, sp := range s.days[models.WeekdayIndex(d.Weekday())] {
		if sp.start < sp.end {
			out = appendWindow(out, loc, d, sp.start, d, sp.end)
			continue
		}
		out = appendWindow(out, loc, d, sp.start, d, day)
		if sp.end > 0 {
			next := d.AddDays(1)
			out = appendWindow(out, loc, next, 0, next, sp.end)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func appendWindow(out []Window, loc *time.Location, sd timezone.Date, so time.Duration, ed timezone.Date, eo time.Duration) []Window {
	w := Window{
		Start: timezone.ToUTCIn(loc, timezone.LocalDateTime{Date: sd, Offset: so}),
		End:   timezone.ToUTCIn(loc, timezone.LocalDateTime{Date: ed, Offset: eo}),
	}
	if w.Empty() {
		return out
	}
	return append(out, w)
}

// OpenWindows returns the disjoint, ordered open windows of s clipped to r.
// Every local date that r touches is resolved, plus the day before so that
// overnight tails reaching into r are included.
func (s *Schedule) OpenWindows(loc *time.Location, r Window) []Window {
	if r.Empty() {
		return nil
	}

	first := timezone.DateOf(r.Start.In(loc)).AddDays(-1)
	last := timezone.DateOf(r.End.In(loc))

	var all []Window
	for d := first; !d.After(last); d = d.AddDays(1) {
		all = append(all, s.ResolveDay(loc, d)...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })

	var merged []Window
	for _, w := range all {
		if w.Start.Before(r.Start) {
			w.Start = r.Start
		}
		if w.End.After(r.End) {
			w.End = r.End
		}
		if w.Empty() {
			continue
		}
		if n := len(merged); n > 0 && !w.Start.After(merged[n-1].End) {
			if w.End.After(merged[n-1].End) {
				merged[n-1].End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
