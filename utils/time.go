// Package utils provides utility functions for the HEMS application.
package utils //nolint:revive // utils is a common and acceptable package name

import "time"

// GetUTCString formats a time.Time to the ENTSO-E API format YYYYMMDDHHmm.
func GetUTCString(t time.Time) string {
	return t.UTC().Format("200601021504")
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from start to end,
// inclusive of both. Returns 0 when end's day precedes start's day.
func DaysBetween(start, end time.Time) int {
	s := StartOfDay(start)
	e := StartOfDay(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}
