// Package timeutil provides calendar helpers for school records: an injectable
// clock, day truncation in the school's timezone, and school-day enumeration.
package timeutil

import (
	"sync"
	"time"
)

// DefaultLocation is used when no school timezone is configured.
var DefaultLocation = time.UTC

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current time. Handlers take a Clock so that tests can pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant until advanced.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock pinned at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// OrSystem returns c, or a SystemClock when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// DAYS
// ══════════════════════════════════════════════════════════════════════════════

// Date creates midnight of the given day in DefaultLocation.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, DefaultLocation)
}

// StartOfDay returns 00:00:00 of t's calendar day, keeping t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsWeekend checks if the given time is on a weekend.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DayKey formats a day as YYYY-MM-DD, suitable for map keys.
func DayKey(t time.Time) string {
	return t.Format(DateFormat)
}

// DateFormat is the canonical date layout used for keys and SQL date parameters.
const DateFormat = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string in DefaultLocation.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, value, DefaultLocation)
}

// SchoolDays enumerates the weekdays in [from, to], skipping any day present in
// excluded (keyed by DayKey). Returns nil when to precedes from.
func SchoolDays(from, to time.Time, excluded map[string]bool) []time.Time {
	start := StartOfDay(from)
	end := StartOfDay(to)
	if end.Before(start) {
		return nil
	}

	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) {
			continue
		}
		if excluded[DayKey(d)] {
			continue
		}
		days = append(days, d)
	}
	return days
}
