// Package store owns the job queue of one variant. It is the only place job
// state changes, and it writes the full queue through a Persister after
// every mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

// DefaultSaveTimeout bounds a single write to the persisted slot.
const DefaultSaveTimeout = 5 * time.Second

// ErrDuplicateJob is returned when enqueueing an id that is already queued.
var ErrDuplicateJob = errors.New("job id already queued")

// Persister is the durable key-value slot holding one queue.
type Persister interface {
	Load(ctx context.Context) ([]domain.Job, error)
	Save(ctx context.Context, jobs []domain.Job) error
}

// Store is an ordered, persisted collection of jobs. All methods are safe
// for concurrent use and return copies.
type Store struct {
	mu          sync.Mutex
	jobs        []domain.Job
	persister   Persister
	logger      *slog.Logger
	now         func() time.Time
	saveTimeout time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSaveTimeout overrides DefaultSaveTimeout.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.saveTimeout = d
	}
}

// Open loads the persisted queue, reconciles it once and returns the store.
func Open(ctx context.Context, persister Persister, logger *slog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		persister:   persister,
		logger:      logger,
		now:         time.Now,
		saveTimeout: DefaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted queue: %w", err)
	}

	s.jobs = ReconcileOnLoad(raw)

	recovered := 0
	for _, job := range s.jobs {
		if job.Recovered {
			recovered++
			logger.Warn("Recovered job with unknown outcome",
				slog.String("job_id", job.ID),
				slog.String("collector", string(job.Collector)),
				slog.String("job_type", string(job.JobType)),
			)
		}
	}

	logger.Info("Job queue loaded",
		slog.Int("jobs", len(s.jobs)),
		slog.Int("recovered", recovered),
	)

	s.mu.Lock()
	s.persistLocked()
	s.mu.Unlock()

	return s, nil
}

// All returns the queue in enqueue order.
func (s *Store) All() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Job(nil), s.jobs...)
}

// Get returns one job.
func (s *Store) Get(id string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return s.jobs[idx], nil
}

// Enqueue appends a job.
func (s *Store) Enqueue(job domain.Job) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(job.ID) >= 0 {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}

	job.UpdatedAt = s.now().UTC()
	job.Normalize()
	s.jobs = append(s.jobs, job)
	s.persistLocked()

	return job, nil
}

// Update applies mutate to a copy of the job and stores the result. A
// mutate error, or a state change the state machine forbids, leaves the
// queue untouched.
func (s *Store) Update(id string, mutate func(job *domain.Job) error) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Job{}, domain.ErrJobNotFound
	}

	job := s.jobs[idx]
	if err := mutate(&job); err != nil {
		return s.jobs[idx], err
	}

	from := s.jobs[idx].State
	if job.State != from && !domain.CanTransition(from, job.State) {
		return s.jobs[idx], fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, job.State)
	}

	if job.State != from && job.State == domain.JobStateRunning {
		job.Progress = domain.MinProgress
	}

	job.ID = id
	job.UpdatedAt = s.now().UTC()
	job.Normalize()
	s.jobs[idx] = job
	s.persistLocked()

	return job, nil
}

// Remove deletes one job.
func (s *Store) Remove(id string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Job{}, domain.ErrJobNotFound
	}

	removed := s.jobs[idx]
	s.jobs = append(s.jobs[:idx:idx], s.jobs[idx+1:]...)
	s.persistLocked()

	return removed, nil
}

// Clear empties the queue and returns how many jobs were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.jobs)
	s.jobs = nil
	s.persistLocked()

	return n
}

// ClearTerminal removes completed and errored jobs.
func (s *Store) ClearTerminal() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !job.State.Terminal() {
			kept = append(kept, job)
		}
	}

	n := len(s.jobs) - len(kept)
	s.jobs = kept
	s.persistLocked()

	return n
}

func (s *Store) indexLocked(id string) int {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the whole queue. Failures are logged only: the
// in-memory queue stays authoritative for the running process.
func (s *Store) persistLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	snapshot := append(make([]domain.Job, 0, len(s.jobs)), s.jobs...)
	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.logger.Error("Failed to persist job queue",
			slog.Int("jobs", len(snapshot)),
			slog.String("error", err.Error()),
		)
	}
}
