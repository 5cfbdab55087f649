// Package timeutil provides calendar-day helpers evaluated in an explicit
// location. Streaks and activity windows are defined on calendar days, so
// every helper takes the location instead of assuming one.
package timeutil

import (
	"fmt"
	"time"
)

// Day is one day, 24h.
const Day = 24 * time.Hour

// LoadLocation resolves a timezone name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// IsSameDay checks if two times fall on the same calendar day in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	return StartOfDay(t1, loc).Equal(StartOfDay(t2, loc))
}

// PrevDay returns midnight of the calendar day before day.
// AddDate is used so DST transitions do not shift the result.
func PrevDay(day time.Time) time.Time {
	return day.AddDate(0, 0, -1)
}

// DayKey formats t's calendar day in loc as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return StartOfDay(t, loc).Format(time.DateOnly)
}

// DaysBetween returns the whole number of calendar days from t1 to t2 in loc.
// The result is negative if t2 is before t1.
func DaysBetween(t1, t2 time.Time, loc *time.Location) int {
	a := StartOfDay(t1, loc)
	b := StartOfDay(t2, loc)
	// Round via the date components to stay exact across DST changes.
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / Day)
}

// DaysSince returns elapsed time between t and now as fractional days.
func DaysSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}
