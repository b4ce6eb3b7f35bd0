// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// StartOfUTCDay truncates t to midnight of its UTC calendar day
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameUTCDay reports whether a and b fall on the same UTC calendar day
func SameUTCDay(a, b time.Time) bool {
	return StartOfUTCDay(a).Equal(StartOfUTCDay(b))
}

// PreviousUTCDay returns midnight of the UTC day before t
func PreviousUTCDay(t time.Time) time.Time {
	return StartOfUTCDay(t).AddDate(0, 0, -1)
}

// FormatRFC3339Ptr formats an optional timestamp, returning nil for nil input
func FormatRFC3339Ptr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
