package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when no job with the given id is queued
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotPending is returned when run is requested for a job that is not pending
	ErrJobNotPending = errors.New("job is not pending")

	// ErrJobNotRecovered is returned when a manual override targets a job that was not recovered
	ErrJobNotRecovered = errors.New("job is not a recovered running job")

	// ErrInvalidTransition is returned when a state change violates the job state machine
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrEndpointNotMapped is returned when no backend endpoint exists for a job type and collector
	ErrEndpointNotMapped = errors.New("no backend endpoint mapped")

	// ErrMissingSelection is returned when job type, collector or dates were not supplied
	ErrMissingSelection = errors.New("job type, collector and date range are required")

	// ErrInvalidSelection is returned for an unknown job type or collector
	ErrInvalidSelection = errors.New("invalid job type or collector")

	// ErrConfirmationRequired is returned when a destructive action was not confirmed
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrUnknownVariant is returned when a queue variant is not configured
	ErrUnknownVariant = errors.New("unknown queue variant")
)

// ValidationError is a rejected date range together with the reason shown
// to the operator.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid date range: " + e.Reason
}

// EndpointError wraps ErrEndpointNotMapped with the offending pair.
func EndpointError(jobType JobType, collector Collector) error {
	return fmt.Errorf("%w for %s/%s", ErrEndpointNotMapped, jobType, collector)
}
