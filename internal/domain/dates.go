package domain

import "time"

// DateFromDayOfYear converts a 1-based day of year to a UTC date. Two-digit
// years are read as 20yy.
func DateFromDayOfYear(day, year int) time.Time {
	if year < 100 {
		year += 2000
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day-1)
}

// DayOfYear returns the 1-based day of year of t.
func DayOfYear(t time.Time) int {
	return t.YearDay()
}

// TruncateDay drops the clock part of t, keeping the UTC date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween lists every date from start to end, both inclusive.
func DaysBetween(start, end time.Time) []time.Time {
	start, end = TruncateDay(start), TruncateDay(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
