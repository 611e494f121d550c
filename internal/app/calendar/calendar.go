// Package calendar provides day-granularity arithmetic in the location of
// the values it is given. Callers pass "now" explicitly; nothing here reads
// the wall clock.
package calendar

import "time"

const day = 24 * time.Hour

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// AtClock returns hour:minute on t's calendar day.
func AtClock(t time.Time, hour, minute int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, t.Location())
}

// Yesterday returns midnight of the day before now.
func Yesterday(now time.Time) time.Time {
	return StartOfDay(now).AddDate(0, 0, -1)
}

// IsSameDay reports whether a and b fall on the same calendar day,
// as seen from a's location.
func IsSameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.In(a.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// IsSameMonth reports whether a and b fall in the same calendar month,
// as seen from a's location.
func IsSameMonth(a, b time.Time) bool {
	y1, m1, _ := a.Date()
	y2, m2, _ := b.In(a.Location()).Date()
	return y1 == y2 && m1 == m2
}

// DaysBetween counts whole calendar days from from's day to to's day,
// as seen from from's location. Negative when to is earlier.
// DST transitions do not skew the count.
func DaysBetween(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.In(from.Location()).Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / day)
}

// DaysSince counts whole calendar days from t's day to now's day.
func DaysSince(t, now time.Time) int {
	return DaysBetween(t, now)
}
