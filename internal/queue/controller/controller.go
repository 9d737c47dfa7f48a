// Package controller is the operator surface of one queue variant.
package controller

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/recon-queue/internal/catalog"
	"github.com/cuongbtq/recon-queue/internal/events"
	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/cuongbtq/recon-queue/internal/queue/store"
	"github.com/cuongbtq/recon-queue/internal/queue/validator"
)

// Executor runs jobs of the same variant.
type Executor interface {
	Run(jobID string) (domain.Job, error)
	RunAllPending() ([]string, error)
	MarkCompleted(jobID string) (domain.Job, error)
	MarkFailed(jobID string) (domain.Job, error)
	InFlight() int
}

// Config holds controller dependencies.
type Config struct {
	Variant   catalog.Variant
	Catalog   *catalog.Catalog
	Store     *store.Store
	Executor  Executor
	Validator *validator.Validator
	Emitter   *events.Emitter
	Logger    *slog.Logger

	NewID func() (string, error)
	Now   func() time.Time
}

// EnqueueRequest is an operator's selection. Zero values mean "not
// selected".
type EnqueueRequest struct {
	JobType   domain.JobType
	Collector domain.Collector
	From      time.Time
	To        time.Time
}

// Summary counts jobs per state. Recovered jobs are also counted as running.
type Summary struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Recovered int `json:"recovered"`
	Completed int `json:"completed"`
	Error     int `json:"error"`
	Total     int `json:"total"`
	InFlight  int `json:"inFlight"`
}

// Limits tells an operator which dates may be picked for a pair.
type Limits struct {
	JobType   domain.JobType   `json:"jobType"`
	Collector domain.Collector `json:"collector"`
	Today     time.Time        `json:"today"`
	Limit     time.Time        `json:"limit"`
	LagDays   int              `json:"lagDays"`
}

// Controller validates operator input and dispatches it to the store and
// the executor.
type Controller struct {
	variant   catalog.Variant
	catalog   *catalog.Catalog
	store     *store.Store
	executor  Executor
	validator *validator.Validator
	emitter   *events.Emitter
	logger    *slog.Logger
	newID     func() (string, error)
	now       func() time.Time
}

// New creates a controller.
func New(cfg *Config) *Controller {
	c := &Controller{
		variant:   cfg.Variant,
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		executor:  cfg.Executor,
		validator: cfg.Validator,
		emitter:   cfg.Emitter,
		logger:    cfg.Logger.With(slog.String("variant", cfg.Variant.Name)),
		newID:     cfg.NewID,
		now:       cfg.Now,
	}
	if c.newID == nil {
		c.newID = newJobID
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.emitter == nil {
		c.emitter = events.NewEmitter(nil, cfg.Variant.Name, cfg.Logger)
	}
	return c
}

// newJobID returns a time-ordered UUIDv7.
func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate job id: %w", err)
	}
	return id.String(), nil
}

// Variant returns the queue variant served.
func (c *Controller) Variant() catalog.Variant {
	return c.variant
}

// Enqueue validates req and appends a pending job.
func (c *Controller) Enqueue(req EnqueueRequest) (domain.Job, error) {
	// Step 1: Check the selection
	if err := c.checkSelection(req.JobType, req.Collector); err != nil {
		return domain.Job{}, err
	}
	if req.From.IsZero() || req.To.IsZero() {
		return domain.Job{}, domain.ErrMissingSelection
	}

	// Step 2: The pair must be executable
	if _, err := c.catalog.Endpoint(req.JobType, req.Collector); err != nil {
		return domain.Job{}, err
	}

	// Step 3: Validate the date range
	from := domain.DateOf(req.From, time.UTC)
	to := domain.DateOf(req.To, time.UTC)
	if reason := c.validator.Explain(req.JobType, req.Collector, from, to); reason != "" {
		return domain.Job{}, &domain.ValidationError{Reason: reason}
	}

	// Step 4: Append the job
	id, err := c.newID()
	if err != nil {
		return domain.Job{}, err
	}

	job, err := c.store.Enqueue(domain.Job{
		ID:         id,
		JobType:    req.JobType,
		Collector:  req.Collector,
		DateRange:  domain.DateRange{From: from, To: to},
		State:      domain.JobStatePending,
		Progress:   domain.MinProgress,
		EnqueuedAt: c.now().UTC(),
	})
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to enqueue job: %w", err)
	}

	c.logger.Info("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.JobType)),
		slog.String("collector", string(job.Collector)),
		slog.String("from", from.Format(domain.DateLayout)),
		slog.String("to", to.Format(domain.DateLayout)),
	)
	c.emitter.Emit(events.ForJob(events.TypeJobEnqueued, job))

	return job, nil
}

func (c *Controller) checkSelection(jobType domain.JobType, collector domain.Collector) error {
	if jobType == "" || collector == "" {
		return domain.ErrMissingSelection
	}
	if !c.catalog.IsJobType(jobType) || !c.variant.Serves(jobType) {
		return fmt.Errorf("%w: job type %q on %s queue", domain.ErrInvalidSelection, jobType, c.variant.Name)
	}
	if !c.catalog.IsCollector(collector) {
		return fmt.Errorf("%w: collector %q", domain.ErrInvalidSelection, collector)
	}
	return nil
}

// Run starts one pending job.
func (c *Controller) Run(jobID string) (domain.Job, error) {
	return c.executor.Run(jobID)
}

// RunAllPending starts every pending job and returns the started ids.
func (c *Controller) RunAllPending() ([]string, error) {
	return c.executor.RunAllPending()
}

// MarkCompleted resolves a recovered job as completed.
func (c *Controller) MarkCompleted(jobID string) (domain.Job, error) {
	return c.executor.MarkCompleted(jobID)
}

// MarkFailed resolves a recovered job as failed.
func (c *Controller) MarkFailed(jobID string) (domain.Job, error) {
	return c.executor.MarkFailed(jobID)
}

// Delete removes one job. Deleting a live running job does not cancel its
// backend call; the outcome is discarded when it arrives.
func (c *Controller) Delete(jobID string, confirmed bool) (domain.Job, error) {
	if !confirmed {
		return domain.Job{}, domain.ErrConfirmationRequired
	}

	job, err := c.store.Remove(jobID)
	if err != nil {
		return domain.Job{}, err
	}

	attrs := []any{
		slog.String("job_id", job.ID),
		slog.String("state", string(job.State)),
	}
	if job.State == domain.JobStateRunning && !job.Recovered {
		c.logger.Warn("Running job deleted, backend call continues", attrs...)
	} else {
		c.logger.Info("Job deleted", attrs...)
	}
	c.emitter.Emit(events.ForJob(events.TypeJobDeleted, job))

	return job, nil
}

// Clear removes every job.
func (c *Controller) Clear(confirmed bool) (int, error) {
	if !confirmed {
		return 0, domain.ErrConfirmationRequired
	}

	n := c.store.Clear()
	c.logger.Info("Job queue cleared", slog.Int("removed", n))
	c.emitter.Emit(events.Event{Type: events.TypeQueueCleared, Count: n})

	return n, nil
}

// ClearTerminal removes completed and failed jobs.
func (c *Controller) ClearTerminal(confirmed bool) (int, error) {
	if !confirmed {
		return 0, domain.ErrConfirmationRequired
	}

	n := c.store.ClearTerminal()
	c.logger.Info("Finished jobs cleared", slog.Int("removed", n))
	c.emitter.Emit(events.Event{Type: events.TypeQueueCleared, Count: n, Message: "terminal"})

	return n, nil
}

// Jobs returns the queue in enqueue order.
func (c *Controller) Jobs() []domain.Job {
	return c.store.All()
}

// Job returns one job.
func (c *Controller) Job(jobID string) (domain.Job, error) {
	return c.store.Get(jobID)
}

// Summary counts the queue.
func (c *Controller) Summary() Summary {
	var s Summary
	for _, job := range c.store.All() {
		switch job.State {
		case domain.JobStatePending:
			s.Pending++
		case domain.JobStateRunning:
			s.Running++
			if job.Recovered {
				s.Recovered++
			}
		case domain.JobStateCompleted:
			s.Completed++
		case domain.JobStateError:
			s.Error++
		}
		s.Total++
	}
	s.InFlight = c.executor.InFlight()
	return s
}

// Limits returns the selectable date bounds of a pair.
func (c *Controller) Limits(jobType domain.JobType, collector domain.Collector) (Limits, error) {
	if err := c.checkSelection(jobType, collector); err != nil {
		return Limits{}, err
	}
	return Limits{
		JobType:   jobType,
		Collector: collector,
		Today:     c.validator.Today(),
		Limit:     c.validator.Limit(jobType, collector),
		LagDays:   c.catalog.LagDays(jobType, collector),
	}, nil
}
