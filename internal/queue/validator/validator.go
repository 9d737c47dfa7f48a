// Package validator decides which calendar dates an operator may request for
// a job type and collector.
package validator

import (
	"fmt"
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

// LagSource supplies the per-pair data lag in days.
type LagSource interface {
	LagDays(jobType domain.JobType, collector domain.Collector) int
}

// Validator is pure apart from reading its clock.
type Validator struct {
	lags LagSource
	loc  *time.Location
	now  func() time.Time
}

// Option customizes a Validator.
type Option func(*Validator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// New creates a validator that computes "today" in loc.
func New(lags LagSource, loc *time.Location, opts ...Option) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	v := &Validator{
		lags: lags,
		loc:  loc,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Today returns the current calendar date in the business time zone.
func (v *Validator) Today() time.Time {
	return domain.DateOf(v.now(), v.loc)
}

// Limit returns the latest permissible date for the pair.
func (v *Validator) Limit(jobType domain.JobType, collector domain.Collector) time.Time {
	return domain.AddDays(v.Today(), -v.lags.LagDays(jobType, collector))
}

// IsValid reports whether from..to may be requested.
func (v *Validator) IsValid(jobType domain.JobType, collector domain.Collector, from, to time.Time) bool {
	return v.Explain(jobType, collector, from, to) == ""
}

// Explain returns why from..to is rejected, or "" when it is valid.
func (v *Validator) Explain(jobType domain.JobType, collector domain.Collector, from, to time.Time) string {
	if from.IsZero() || to.IsZero() {
		return "select both a start and an end date"
	}

	from, to = calendarDate(from), calendarDate(to)
	today := v.Today()

	if from.After(today) {
		return "start date cannot be in the future"
	}
	if to.After(today) {
		return "end date cannot be in the future"
	}
	if from.After(to) {
		return "start date must be on or before end date"
	}

	limit := v.Limit(jobType, collector)
	if to.After(limit) {
		return fmt.Sprintf("dates must be on or before %s (%s %s data is available with a %d-day lag)",
			limit.Format(domain.DateLayout), collector, jobType, v.lags.LagDays(jobType, collector))
	}

	return ""
}

// IsDisabled reports whether a date picker should grey out date.
func (v *Validator) IsDisabled(jobType domain.JobType, collector domain.Collector, date time.Time) bool {
	date = calendarDate(date)
	return date.After(v.Today()) || date.After(v.Limit(jobType, collector))
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
