package persistence

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/cuongbtq/recon-queue/shared/logger"
	"github.com/cuongbtq/recon-queue/shared/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJobs() []domain.Job {
	enqueued := time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)
	return []domain.Job{
		{
			ID:        "job-1",
			JobType:   domain.JobTypeReconciliation,
			Collector: domain.CollectorKashio,
			DateRange: domain.DateRange{
				From: time.Date(2026, time.October, 13, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC),
			},
			State:      domain.JobStateCompleted,
			Progress:   100,
			Message:    "OK",
			EnqueuedAt: enqueued,
			UpdatedAt:  enqueued.Add(time.Minute),
		},
		{
			ID:        "job-2",
			JobType:   domain.JobTypeSettlement,
			Collector: domain.CollectorNiubiz,
			DateRange: domain.DateRange{
				From: time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2026, time.October, 10, 0, 0, 0, 0, time.UTC),
			},
			State:      domain.JobStateRunning,
			Progress:   42,
			EnqueuedAt: enqueued.Add(time.Second),
			UpdatedAt:  enqueued.Add(2 * time.Second),
		},
	}
}

func discardLogger() *slog.Logger {
	return logger.NewDiscard()
}

func TestFileSlot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	slot := NewFileSlot(filepath.Join(dir, "nested"), "reconciliation_queue")

	t.Run("missing file is an empty queue", func(t *testing.T) {
		jobs, err := slot.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, slot.Save(ctx, sampleJobs()))

		jobs, err := slot.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, sampleJobs(), jobs)
		assert.Equal(t, filepath.Join(dir, "nested", "reconciliation_queue.json"), slot.Path())
	})

	t.Run("empty queue is written as an empty array", func(t *testing.T) {
		require.NoError(t, slot.Save(ctx, nil))

		data, err := os.ReadFile(slot.Path())
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(data))
	})

	t.Run("dates are ISO strings", func(t *testing.T) {
		require.NoError(t, slot.Save(ctx, sampleJobs()[:1]))

		data, err := os.ReadFile(slot.Path())
		require.NoError(t, err)
		assert.Contains(t, string(data), `"from":"2026-10-13T00:00:00Z"`)
		assert.Contains(t, string(data), `"enqueuedAt":"2026-10-16T09:30:00Z"`)
	})

	t.Run("corrupt file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(slot.Path(), []byte("{not json"), 0o644))

		_, err := slot.Load(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode job queue")
	})
}

func TestSQLSlot(t *testing.T) {
	ctx := context.Background()

	client, err := sqlite.NewClient(sqlite.MemoryPath, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, EnsureSchema(ctx, client.GetDB()))
	// Idempotent.
	require.NoError(t, EnsureSchema(ctx, client.GetDB()))

	recon := NewSQLSlot(client.GetDB(), "reconciliation_queue")
	settle := NewSQLSlot(client.GetDB(), "settlement_queue")

	jobs, err := recon.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	require.NoError(t, recon.Save(ctx, sampleJobs()))
	require.NoError(t, settle.Save(ctx, sampleJobs()[1:]))

	// Second save overwrites the row.
	require.NoError(t, recon.Save(ctx, sampleJobs()[:1]))

	jobs, err = recon.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleJobs()[:1], jobs)

	jobs, err = settle.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleJobs()[1:], jobs)

	var rows int
	require.NoError(t, client.GetDB().GetContext(ctx, &rows, `SELECT COUNT(*) FROM queue_slots`))
	assert.Equal(t, 2, rows)
}

func TestMemorySlot(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()

	require.NoError(t, slot.Save(ctx, sampleJobs()))
	assert.Equal(t, 1, slot.Saves())

	jobs, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleJobs(), jobs)

	slot.FailSaves(assert.AnError)
	assert.ErrorIs(t, slot.Save(ctx, nil), assert.AnError)
	assert.Equal(t, 1, slot.Saves())

	// The failed save left the previous contents in place.
	jobs, err = slot.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
