// Package calendar provides business-day date arithmetic for duration
// and windowing calculations. All functions compare dates at day
// granularity; time-of-day on the inputs never changes a result.
package calendar

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidRange is returned when a range's end falls before its start.
var ErrInvalidRange = errors.New("calendar: end date before start date")

// DefaultWeekStart is the first day of a reporting week.
var DefaultWeekStart = time.Sunday

// Day truncates a timestamp to midnight of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsBusinessDay reports whether t falls on a weekday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// BusinessDaysBetween counts the weekdays from start (inclusive) up to
// end (exclusive). Exactly one calendar week spanning a single weekend
// yields 5.
func BusinessDaysBetween(start, end time.Time) (int, error) {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return 0, ErrInvalidRange
	}

	days := 0
	for d := s; d.Before(e); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			days++
		}
	}
	return days, nil
}

// DurationInHours converts an elapsed span to whole hours, rounding
// half up.
func DurationInHours(d time.Duration) int {
	return int(math.Floor(d.Hours() + 0.5))
}

// MonthRange returns the first and last calendar day of the month
// containing t, at day granularity.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, -1)
	return start, end
}

// WeekRange returns the 7-day span containing t for a week beginning
// on weekStart.
func WeekRange(t time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	d := Day(t)
	back := (int(d.Weekday()) - int(weekStart) + 7) % 7
	start := d.AddDate(0, 0, -back)
	end := start.AddDate(0, 0, 6)
	return start, end
}
