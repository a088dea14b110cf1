package domain

import (
	"fmt"
	"time"
)

// DateFormat is the storage and wire format of calendar dates
const DateFormat = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// IsWeekend reports whether t falls on Saturday or Sunday
func IsWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// PreviousWeekday returns the closest weekday strictly before t
func PreviousWeekday(t time.Time) time.Time {
	d := Day(t).AddDate(0, 0, -1)
	for IsWeekend(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextWeekday returns t if it is a weekday, otherwise the following Monday
func NextWeekday(t time.Time) time.Time {
	d := Day(t)
	for IsWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// AddTradingDays moves n weekdays forward (or backward for negative n)
func AddTradingDays(t time.Time, n int) time.Time {
	d := Day(t)
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if !IsWeekend(d) {
			n--
		}
	}
	return d
}

// Weekdays lists every weekday in [start, end]
func Weekdays(start, end time.Time) []time.Time {
	var out []time.Time
	for d := Day(start); !d.After(Day(end)); d = d.AddDate(0, 0, 1) {
		if !IsWeekend(d) {
			out = append(out, d)
		}
	}
	return out
}
