package domain

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the wire layout of calendar dates in the HTTP API.
	DateLayout = "2006-01-02"

	// BackendDateLayout is the DDMMYYYY layout the execution endpoints expect.
	BackendDateLayout = "02012006"
)

// DateOf returns the calendar date of t as seen in loc, as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// AddDays shifts a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return date.AddDate(0, 0, n)
}
