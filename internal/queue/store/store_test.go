package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/cuongbtq/recon-queue/internal/queue/persistence"
	"github.com/cuongbtq/recon-queue/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

func newJob(id string, state domain.JobState) domain.Job {
	return domain.Job{
		ID:        id,
		JobType:   domain.JobTypeReconciliation,
		Collector: domain.CollectorKashio,
		DateRange: domain.DateRange{
			From: time.Date(2026, time.October, 13, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC),
		},
		State:      state,
		EnqueuedAt: fixedNow,
	}
}

func openStore(t *testing.T, slot Persister) *Store {
	t.Helper()

	s, err := Open(context.Background(), slot, logger.NewDiscard(), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s
}

func TestStore_Mutations(t *testing.T) {
	slot := persistence.NewMemorySlot()
	s := openStore(t, slot)
	baseSaves := slot.Saves()

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Enqueue(newJob(id, domain.JobStatePending))
		require.NoError(t, err)
	}
	assert.Equal(t, baseSaves+3, slot.Saves(), "every enqueue is persisted")

	ids := func() []string {
		var out []string
		for _, job := range s.All() {
			out = append(out, job.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids())

	removed, err := s.Remove("b")
	require.NoError(t, err)
	assert.Equal(t, "b", removed.ID)
	assert.Equal(t, []string{"a", "c"}, ids())

	_, err = s.Remove("b")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = s.Enqueue(newJob("a", domain.JobStatePending))
	assert.ErrorIs(t, err, ErrDuplicateJob)

	assert.Equal(t, 2, s.Clear())
	assert.Empty(t, s.All())

	persisted, err := slot.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestStore_ClearTerminal(t *testing.T) {
	slot := persistence.NewMemorySlot()
	require.NoError(t, slot.Save(context.Background(), []domain.Job{
		newJob("pending", domain.JobStatePending),
		newJob("running", domain.JobStateRunning),
		newJob("done", domain.JobStateCompleted),
		newJob("failed", domain.JobStateError),
	}))
	s := openStore(t, slot)

	assert.Equal(t, 2, s.ClearTerminal())

	jobs := s.All()
	require.Len(t, jobs, 2)
	assert.Equal(t, "pending", jobs[0].ID)
	assert.Equal(t, "running", jobs[1].ID)
}

func TestStore_Update(t *testing.T) {
	s := openStore(t, persistence.NewMemorySlot())
	_, err := s.Enqueue(newJob("a", domain.JobStatePending))
	require.NoError(t, err)

	t.Run("entering running resets progress", func(t *testing.T) {
		job, err := s.Update("a", func(job *domain.Job) error {
			job.State = domain.JobStateRunning
			job.Progress = 55
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateRunning, job.State)
		assert.Equal(t, 0, job.Progress)
		assert.Equal(t, fixedNow, job.UpdatedAt)
	})

	t.Run("progress is clamped", func(t *testing.T) {
		job, err := s.Update("a", func(job *domain.Job) error {
			job.Progress = 250
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 100, job.Progress)
	})

	t.Run("mutate error leaves job unchanged", func(t *testing.T) {
		before, err := s.Get("a")
		require.NoError(t, err)

		_, err = s.Update("a", func(job *domain.Job) error {
			job.Message = "changed"
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		after, err := s.Get("a")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("forbidden transition is rejected", func(t *testing.T) {
		_, err := s.Update("a", func(job *domain.Job) error {
			job.State = domain.JobStatePending
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		job, err := s.Get("a")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateRunning, job.State)
	})

	t.Run("completion forces progress and clears recovered", func(t *testing.T) {
		job, err := s.Update("a", func(job *domain.Job) error {
			job.State = domain.JobStateCompleted
			job.Recovered = true
			job.Progress = 3
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 100, job.Progress)
		assert.False(t, job.Recovered)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Update("missing", func(job *domain.Job) error { return nil })
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})
}

func TestStore_PersistFailureIsSwallowed(t *testing.T) {
	slot := persistence.NewMemorySlot()
	s := openStore(t, slot)

	slot.FailSaves(assert.AnError)

	_, err := s.Enqueue(newJob("a", domain.JobStatePending))
	require.NoError(t, err)
	assert.Len(t, s.All(), 1, "in-memory mutation is kept")

	slot.FailSaves(nil)
	_, err = s.Enqueue(newJob("b", domain.JobStatePending))
	require.NoError(t, err)

	persisted, err := slot.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 2, "next successful save writes the full queue")
}

func TestStore_RoundTripMarksRunningAsRecovered(t *testing.T) {
	slot := persistence.NewMemorySlot()
	s := openStore(t, slot)

	for _, job := range []domain.Job{
		newJob("pending", domain.JobStatePending),
		newJob("running", domain.JobStatePending),
		newJob("done", domain.JobStatePending),
	} {
		_, err := s.Enqueue(job)
		require.NoError(t, err)
	}
	_, err := s.Update("running", func(job *domain.Job) error {
		job.State = domain.JobStateRunning
		return nil
	})
	require.NoError(t, err)
	_, err = s.Update("running", func(job *domain.Job) error {
		job.Progress = 37
		return nil
	})
	require.NoError(t, err)
	for _, state := range []domain.JobState{domain.JobStateRunning, domain.JobStateCompleted} {
		_, err = s.Update("done", func(job *domain.Job) error {
			job.State = state
			job.Message = "OK"
			return nil
		})
		require.NoError(t, err)
	}

	before := s.All()

	reloaded := openStore(t, slot)
	after := reloaded.All()

	require.Len(t, after, len(before))
	for i := range before {
		want := before[i]
		if want.State == domain.JobStateRunning {
			want.Recovered = true
		}
		assert.Equal(t, want, after[i])
	}

	running, err := reloaded.Get("running")
	require.NoError(t, err)
	assert.True(t, running.Recovered)
	assert.Equal(t, domain.JobStateRunning, running.State)
	assert.Equal(t, 37, running.Progress)

	// The recovered flag itself is made durable.
	var persisted []map[string]any
	require.NoError(t, json.Unmarshal(slot.Raw(), &persisted))
	assert.Equal(t, true, persisted[1]["recovered"])
}

func TestReconcileOnLoad(t *testing.T) {
	stale := newJob("stale", domain.JobStateCompleted)
	stale.Recovered = true
	stale.Progress = 12

	overflow := newJob("overflow", domain.JobStateRunning)
	overflow.Progress = 140

	jobs := ReconcileOnLoad([]domain.Job{
		newJob("pending", domain.JobStatePending),
		overflow,
		stale,
		newJob("pending", domain.JobStateError),
	})

	require.Len(t, jobs, 3, "duplicate id keeps first occurrence")

	assert.False(t, jobs[0].Recovered)
	assert.Equal(t, domain.JobStatePending, jobs[0].State)

	assert.True(t, jobs[1].Recovered)
	assert.Equal(t, domain.JobStateRunning, jobs[1].State)
	assert.Equal(t, 100, jobs[1].Progress)

	assert.False(t, jobs[2].Recovered)
	assert.Equal(t, 100, jobs[2].Progress)

	assert.Empty(t, ReconcileOnLoad(nil))
}
