package domain

import (
	"fmt"
	"regexp"
	"time"
)

// TimestampLayout is the only accepted wire format for dates.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

// ParseTimestamp parses a strict millisecond UTC timestamp such as
// 2022-02-04T00:00:00.000Z. Anything else is a validation error.
func ParseTimestamp(field, s string) (time.Time, error) {
	if !timestampRe.MatchString(s) {
		return time.Time{}, NewValidationError(field, fmt.Sprintf("must match %s", TimestampLayout))
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, NewValidationError(field, "invalid date")
	}
	return t.UTC(), nil
}

// FormatTimestamp renders t in the wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
