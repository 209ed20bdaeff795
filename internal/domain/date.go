package domain

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the accepted due date forms, most specific last. Values
// without an offset are taken as UTC.
var dateLayouts = []string{ //nolint:gochecknoglobals // fixed layout set
	time.DateOnly,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ParseDate parses an ISO-8601 date, naive datetime or RFC 3339 timestamp.
// The result is in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or an ISO-8601 timestamp: %w", s, ErrValidation)
}

// FormatDate renders a due date as YYYY-MM-DD when it has no time of day and
// as RFC 3339 otherwise.
func FormatDate(t time.Time) string {
	u := t.UTC()
	if u.Equal(u.Truncate(24 * time.Hour)) {
		return u.Format(time.DateOnly)
	}
	return u.Format(time.RFC3339)
}
