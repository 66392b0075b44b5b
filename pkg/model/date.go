package model

import "time"

// DateLayout is the ISO calendar form used by the text store.
const DateLayout = "2006-01-02"

// Day truncates t to a date at midnight UTC, keeping the calendar day of t's
// own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into a date-only time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a date pointer, or "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

// DatePtr is a convenience for building optional dates.
func DatePtr(t time.Time) *time.Time {
	d := Day(t)
	return &d
}

// SameDate compares two optional dates by calendar day.
func SameDate(a, b *time.Time) bool {
	return FormatDate(a) == FormatDate(b)
}
