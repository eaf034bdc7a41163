package types

import "time"

// DateLayout is the storage format for civil dates. Period boundaries and
// lease dates carry no time-of-day component.
const DateLayout = "2006-01-02"

// FormatDate renders a civil date for storage.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// ParseDate parses a stored civil date at UTC midnight.
func ParseDate(s string) (time.Time, error) { return time.Parse(DateLayout, s) }

// MidnightUTC truncates t to a civil date at UTC midnight.
func MidnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
