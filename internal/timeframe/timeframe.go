package timeframe

import (
	"fmt"
	"time"
)

// DayLayout is the key format of a daily bucket.
const DayLayout = "2006-01-02"

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current time in loc.
func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant. Used by tests and the seeder.
type FixedTimeProvider struct {
	At time.Time
}

// Now returns the fixed instant in loc.
func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.At.In(loc)
}

// Window is a trailing period ending at To.
type Window struct {
	From time.Time
	To   time.Time
	Days int
}

// TrailingDays returns the window [now - days, now].
func TrailingDays(now time.Time, days int) (Window, error) {
	if days <= 0 {
		return Window{}, fmt.Errorf("days must be positive, got %d", days)
	}
	return Window{
		From: now.AddDate(0, 0, -days),
		To:   now,
		Days: days,
	}, nil
}

// DayKey returns the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// DailyKeys returns one UTC day key per calendar day, oldest first,
// ending with the day containing To. Exactly w.Days keys are produced.
func (w Window) DailyKeys() []string {
	keys := make([]string, 0, w.Days)
	end := TruncateToDay(w.To)
	for i := w.Days - 1; i >= 0; i-- {
		keys = append(keys, end.AddDate(0, 0, -i).Format(DayLayout))
	}
	return keys
}

// Contains reports whether t falls inside the window bounds.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// TruncateToDay returns midnight UTC of the day containing t.
func TruncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfMonth returns the first instant of t's UTC month.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
