package utils

import (
	"fmt"
	"time"
)

// UTCLayout is the wire layout for instants: second precision, literal Z.
const UTCLayout = "2006-01-02T15:04:05Z"

// ParseUTC accepts RFC 3339 or a bare "2006-01-02 15:04:05" and returns the instant in UTC.
func ParseUTC(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(time.DateTime, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

// FormatUTC renders t in UTCLayout.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(UTCLayout)
}
