// Package timeutil provides calendar-day helpers for streak tracking.
// Days are counted in UTC unless a location is given.
package timeutil

import "time"

// StartOfDay returns midnight of t's calendar day in UTC.
func StartOfDay(t time.Time) time.Time {
	return StartOfDayIn(t, time.UTC)
}

// StartOfDayIn returns midnight of t's calendar day in loc.
func StartOfDayIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// IsSameDay reports whether t1 and t2 fall on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	return StartOfDay(t1).Equal(StartOfDay(t2))
}

// IsNextDay reports whether t2 falls on the UTC day right after t1's.
func IsNextDay(t1, t2 time.Time) bool {
	return StartOfDay(t1).AddDate(0, 0, 1).Equal(StartOfDay(t2))
}

// DaysBetween returns the signed number of UTC days from t1 to t2.
func DaysBetween(t1, t2 time.Time) int {
	d := StartOfDay(t2).Sub(StartOfDay(t1))
	// UTC days are always 24h long.
	return int(d / (24 * time.Hour))
}
