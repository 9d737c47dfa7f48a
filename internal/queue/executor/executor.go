// Package executor runs queued jobs against the remote execution service.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cuongbtq/recon-queue/internal/events"
	"github.com/cuongbtq/recon-queue/internal/queue/backend"
	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/cuongbtq/recon-queue/internal/queue/store"
)

const (
	// DefaultMaxSimulatedProgress is the highest progress shown while the
	// backend call is outstanding; the rest is reserved for the real outcome.
	DefaultMaxSimulatedProgress = 70

	// DefaultTickInterval is how often simulated progress advances.
	DefaultTickInterval = 800 * time.Millisecond

	minIncrement = 2
	maxIncrement = 8

	MessageSucceeded     = "Process completed successfully"
	MessageMarkedSuccess = "Marked as completed manually"
	MessageMarkedFailed  = "Marked as failed manually"
)

// errSkip aborts a store update that would change nothing.
var errSkip = errors.New("skip")

// Backend performs the remote execution call.
type Backend interface {
	Execute(ctx context.Context, req backend.Request) (backend.Result, error)
}

// Endpoints resolves the backend path of a job.
type Endpoints interface {
	Endpoint(jobType domain.JobType, collector domain.Collector) (string, error)
}

// Config holds executor dependencies.
type Config struct {
	Store     *store.Store
	Backend   Backend
	Endpoints Endpoints
	Domain    string // backend domain segment of this queue variant
	Emitter   *events.Emitter
	Logger    *slog.Logger

	NewTicker            TickerFactory
	MaxSimulatedProgress int
	Increment            func() int // progress added per tick
}

// Executor runs jobs. Every claimed job gets its own goroutine and ticker;
// nothing limits how many run at once.
type Executor struct {
	store     *store.Store
	backend   Backend
	endpoints Endpoints
	domain    string
	emitter   *events.Emitter
	logger    *slog.Logger

	newTicker   TickerFactory
	maxProgress int
	increment   func() int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	tickers map[string]Ticker
}

// New creates an executor. Shutdown must be called to release it.
func New(cfg *Config) *Executor {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Executor{
		store:       cfg.Store,
		backend:     cfg.Backend,
		endpoints:   cfg.Endpoints,
		domain:      cfg.Domain,
		emitter:     cfg.Emitter,
		logger:      cfg.Logger,
		newTicker:   cfg.NewTicker,
		maxProgress: cfg.MaxSimulatedProgress,
		increment:   cfg.Increment,
		ctx:         ctx,
		cancel:      cancel,
		tickers:     make(map[string]Ticker),
	}

	if e.newTicker == nil {
		e.newTicker = IntervalTickers(DefaultTickInterval)
	}
	if e.maxProgress <= 0 || e.maxProgress >= domain.MaxProgress {
		e.maxProgress = DefaultMaxSimulatedProgress
	}
	if e.increment == nil {
		e.increment = func() int {
			return minIncrement + rand.IntN(maxIncrement-minIncrement+1)
		}
	}
	if e.emitter == nil {
		e.emitter = events.NewEmitter(nil, "", cfg.Logger)
	}

	return e
}

type claim struct {
	job      domain.Job
	endpoint string
}

// Run starts a pending job and returns it as claimed. The backend call
// continues in the background.
func (e *Executor) Run(jobID string) (domain.Job, error) {
	c, err := e.claim(jobID)
	if err != nil {
		return domain.Job{}, err
	}
	e.launch(c)
	return c.job, nil
}

// RunAllPending starts every pending job. All of them are running when it
// returns. Jobs that could not be started are reported in the error.
func (e *Executor) RunAllPending() ([]string, error) {
	var (
		claims []claim
		errs   []error
	)

	for _, job := range e.store.All() {
		if job.State != domain.JobStatePending {
			continue
		}
		c, err := e.claim(job.ID)
		if err != nil {
			// Deleted or started by someone else in the meantime.
			if errors.Is(err, domain.ErrJobNotFound) || errors.Is(err, domain.ErrJobNotPending) {
				continue
			}
			errs = append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}
		claims = append(claims, c)
	}

	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		e.launch(c)
		ids = append(ids, c.job.ID)
	}

	e.logger.Info("Started all pending jobs",
		slog.Int("started", len(ids)),
		slog.Int("rejected", len(errs)),
	)

	return ids, errors.Join(errs...)
}

// claim moves a pending job to running after checking it can be sent.
func (e *Executor) claim(jobID string) (claim, error) {
	job, err := e.store.Get(jobID)
	if err != nil {
		return claim{}, err
	}
	if job.State != domain.JobStatePending {
		return claim{}, fmt.Errorf("%w: job %s is %s", domain.ErrJobNotPending, jobID, job.State)
	}

	endpoint, err := e.endpoints.Endpoint(job.JobType, job.Collector)
	if err != nil {
		return claim{}, err
	}

	job, err = e.store.Update(jobID, func(j *domain.Job) error {
		if j.State != domain.JobStatePending {
			return fmt.Errorf("%w: job %s is %s", domain.ErrJobNotPending, jobID, j.State)
		}
		j.State = domain.JobStateRunning
		j.Recovered = false
		j.Progress = 0
		j.Message = ""
		return nil
	})
	if err != nil {
		return claim{}, err
	}

	e.logger.Info("Job started",
		slog.String("job_id", jobID),
		slog.String("job_type", string(job.JobType)),
		slog.String("collector", string(job.Collector)),
		slog.String("endpoint", endpoint),
	)
	e.emitter.Emit(events.ForJob(events.TypeJobStarted, job))

	return claim{job: job, endpoint: endpoint}, nil
}

func (e *Executor) launch(c claim) {
	ticker := e.newTicker()

	e.mu.Lock()
	e.tickers[c.job.ID] = ticker
	e.mu.Unlock()

	ticker.Start(func() { e.tick(c.job.ID) })

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execute(c, ticker)
	}()
}

// tick advances simulated progress without ever reaching maxProgress.
func (e *Executor) tick(jobID string) {
	_, err := e.store.Update(jobID, func(j *domain.Job) error {
		if j.State != domain.JobStateRunning || j.Progress >= e.maxProgress {
			return errSkip
		}
		j.Progress = min(j.Progress+e.increment(), e.maxProgress)
		return nil
	})
	if err != nil && !errors.Is(err, errSkip) && !errors.Is(err, domain.ErrJobNotFound) {
		e.logger.Warn("Failed to advance job progress",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// execute performs the backend call and records its outcome.
func (e *Executor) execute(c claim, ticker Ticker) {
	// Step 1: Call the backend; this is the only blocking point of a run
	res, callErr := e.backend.Execute(e.ctx, backend.Request{
		Domain:   e.domain,
		Endpoint: c.endpoint,
		From:     c.job.DateRange.From,
		To:       c.job.DateRange.To,
	})

	// Step 2: Stop simulated progress as soon as the call settles
	ticker.Stop()
	e.mu.Lock()
	delete(e.tickers, c.job.ID)
	e.mu.Unlock()

	// Step 3: A call cut short by shutdown has no outcome; leave the job
	// running so the next start recovers it
	if callErr != nil && e.ctx.Err() != nil {
		e.logger.Warn("Job interrupted by shutdown, left running for recovery",
			slog.String("job_id", c.job.ID),
		)
		return
	}

	// Step 4: Record the terminal state
	state, message := outcome(res, callErr)
	job, err := e.store.Update(c.job.ID, func(j *domain.Job) error {
		if j.State != domain.JobStateRunning {
			return fmt.Errorf("%w: job is %s", domain.ErrInvalidTransition, j.State)
		}
		j.State = state
		j.Message = message
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			e.logger.Info("Job removed while in flight, discarding result",
				slog.String("job_id", c.job.ID),
				slog.String("state", string(state)),
			)
			return
		}
		e.logger.Error("Failed to record job outcome",
			slog.String("job_id", c.job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if state == domain.JobStateCompleted {
		e.logger.Info("Job completed",
			slog.String("job_id", job.ID),
			slog.String("message", job.Message),
		)
		e.emitter.Emit(events.ForJob(events.TypeJobCompleted, job))
		return
	}

	e.logger.Error("Job failed",
		slog.String("job_id", job.ID),
		slog.String("message", job.Message),
		slog.Bool("transport", backend.IsTransport(callErr)),
	)
	e.emitter.Emit(events.ForJob(events.TypeJobFailed, job))
}

func outcome(res backend.Result, err error) (domain.JobState, string) {
	if err == nil {
		if res.Message == "" {
			return domain.JobStateCompleted, MessageSucceeded
		}
		return domain.JobStateCompleted, res.Message
	}

	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		return domain.JobStateError, backendErr.Message
	}

	var transportErr *backend.TransportError
	if errors.As(err, &transportErr) {
		return domain.JobStateError, "Connection error: " + transportErr.Err.Error()
	}

	return domain.JobStateError, "Connection error: " + err.Error()
}

// MarkCompleted resolves a recovered job as completed without calling the
// backend.
func (e *Executor) MarkCompleted(jobID string) (domain.Job, error) {
	return e.resolve(jobID, domain.JobStateCompleted, MessageMarkedSuccess)
}

// MarkFailed resolves a recovered job as failed without calling the backend.
func (e *Executor) MarkFailed(jobID string) (domain.Job, error) {
	return e.resolve(jobID, domain.JobStateError, MessageMarkedFailed)
}

func (e *Executor) resolve(jobID string, state domain.JobState, message string) (domain.Job, error) {
	job, err := e.store.Update(jobID, func(j *domain.Job) error {
		if j.State != domain.JobStateRunning || !j.Recovered {
			return fmt.Errorf("%w: job %s", domain.ErrJobNotRecovered, jobID)
		}
		j.State = state
		j.Message = message
		return nil
	})
	if err != nil {
		return domain.Job{}, err
	}

	e.logger.Info("Recovered job resolved manually",
		slog.String("job_id", jobID),
		slog.String("state", string(state)),
	)
	e.emitter.Emit(events.ForJob(events.TypeJobResolved, job))

	return job, nil
}

// InFlight returns how many backend calls are outstanding.
func (e *Executor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tickers)
}

// Wait blocks until every outstanding backend call has settled.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown waits for outstanding calls until ctx is done, then abandons
// them. Abandoned jobs stay running and are recovered on the next start.
func (e *Executor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.logger.Warn("Abandoning in-flight jobs",
			slog.Int("in_flight", e.InFlight()),
		)
		e.cancel()
		<-done
		return ctx.Err()
	}
}
