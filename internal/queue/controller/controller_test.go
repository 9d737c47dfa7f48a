package controller

import (
	"context"
	"fmt"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/cuongbtq/recon-queue/internal/catalog"
	"github.com/cuongbtq/recon-queue/internal/events"
	"github.com/cuongbtq/recon-queue/internal/queue/backend"
	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/cuongbtq/recon-queue/internal/queue/executor"
	"github.com/cuongbtq/recon-queue/internal/queue/persistence"
	"github.com/cuongbtq/recon-queue/internal/queue/store"
	"github.com/cuongbtq/recon-queue/internal/queue/validator"
	"github.com/cuongbtq/recon-queue/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 10:00 in Lima, so today is 2026-10-16 there.
var now = time.Date(2026, time.October, 16, 15, 0, 0, 0, time.UTC)

func date(day int) time.Time {
	return time.Date(2026, time.October, day, 0, 0, 0, 0, time.UTC)
}

type okBackend struct{ calls int }

func (b *okBackend) Execute(context.Context, backend.Request) (backend.Result, error) {
	b.calls++
	return backend.Result{StatusCode: 200, Message: "OK"}, nil
}

type fixture struct {
	ctrl     *Controller
	exec     *executor.Executor
	store    *store.Store
	slot     *persistence.MemorySlot
	recorder *events.Recorder
}

func newFixture(t *testing.T, variant catalog.Variant, seed ...domain.Job) *fixture {
	t.Helper()

	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	slot := persistence.NewMemorySlot()
	if len(seed) > 0 {
		require.NoError(t, slot.Save(context.Background(), seed))
	}
	s, err := store.Open(context.Background(), slot, logger.NewDiscard())
	require.NoError(t, err)

	cat := catalog.Default()
	rec := &events.Recorder{}
	emitter := events.NewEmitter(rec, variant.Name, logger.NewDiscard())

	exec := executor.New(&executor.Config{
		Store:     s,
		Backend:   &okBackend{},
		Endpoints: cat,
		Domain:    variant.Domain,
		Emitter:   emitter,
		Logger:    logger.NewDiscard(),
		NewTicker: executor.IntervalTickers(time.Hour),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = exec.Shutdown(ctx)
	})

	seq := 0
	ctrl := New(&Config{
		Variant:   variant,
		Catalog:   cat,
		Store:     s,
		Executor:  exec,
		Validator: validator.New(cat, lima, validator.WithClock(func() time.Time { return now })),
		Emitter:   emitter,
		Logger:    logger.NewDiscard(),
		NewID: func() (string, error) {
			seq++
			return fmt.Sprintf("job-%d", seq), nil
		},
		Now: func() time.Time { return now },
	})

	return &fixture{ctrl: ctrl, exec: exec, store: s, slot: slot, recorder: rec}
}

func TestController_Enqueue(t *testing.T) {
	f := newFixture(t, catalog.Reconciliation)

	job, err := f.ctrl.Enqueue(EnqueueRequest{
		JobType:   domain.JobTypeReconciliation,
		Collector: domain.CollectorKashio,
		From:      date(13),
		To:        date(15),
	})
	require.NoError(t, err)

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.JobStatePending, job.State)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, date(13), job.DateRange.From)
	assert.Equal(t, date(15), job.DateRange.To)
	assert.Equal(t, now, job.EnqueuedAt)
	assert.False(t, job.Recovered)

	assert.Len(t, f.ctrl.Jobs(), 1)
	assert.Equal(t, []events.Type{events.TypeJobEnqueued}, f.recorder.Types())
	assert.Contains(t, string(f.slot.Raw()), `"id":"job-1"`)
}

func TestController_EnqueueRejected(t *testing.T) {
	tests := []struct {
		name       string
		variant    catalog.Variant
		req        EnqueueRequest
		wantErr    error
		wantReason string
	}{
		{
			name:    "missing job type",
			variant: catalog.Reconciliation,
			req:     EnqueueRequest{Collector: domain.CollectorKashio, From: date(13), To: date(14)},
			wantErr: domain.ErrMissingSelection,
		},
		{
			name:    "missing dates",
			variant: catalog.Reconciliation,
			req:     EnqueueRequest{JobType: domain.JobTypeReconciliation, Collector: domain.CollectorKashio, From: date(13)},
			wantErr: domain.ErrMissingSelection,
		},
		{
			name:    "job type of the other variant",
			variant: catalog.Reconciliation,
			req:     EnqueueRequest{JobType: domain.JobTypeSettlement, Collector: domain.CollectorKashio, From: date(13), To: date(14)},
			wantErr: domain.ErrInvalidSelection,
		},
		{
			name:    "unknown collector",
			variant: catalog.Reconciliation,
			req:     EnqueueRequest{JobType: domain.JobTypeReconciliation, Collector: "Visa", From: date(13), To: date(14)},
			wantErr: domain.ErrInvalidSelection,
		},
		{
			name:    "unmapped endpoint",
			variant: catalog.Settlement,
			req:     EnqueueRequest{JobType: domain.JobTypeSettlement, Collector: domain.CollectorPagoEfectivo, From: date(10), To: date(11)},
			wantErr: domain.ErrEndpointNotMapped,
		},
		{
			name:       "start date in the future",
			variant:    catalog.Reconciliation,
			req:        EnqueueRequest{JobType: domain.JobTypeReconciliation, Collector: domain.CollectorKashio, From: date(17), To: date(17)},
			wantReason: "start date cannot be in the future",
		},
		{
			name:       "reversed range",
			variant:    catalog.Reconciliation,
			req:        EnqueueRequest{JobType: domain.JobTypeReconciliation, Collector: domain.CollectorKashio, From: date(14), To: date(12)},
			wantReason: "start date must be on or before end date",
		},
		{
			name:       "inside the lag window",
			variant:    catalog.Settlement,
			req:        EnqueueRequest{JobType: domain.JobTypeSettlement, Collector: domain.CollectorIzipay, From: date(12), To: date(14)},
			wantReason: "dates must be on or before 2026-10-13 (Izipay settlement data is available with a 3-day lag)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.variant)

			_, err := f.ctrl.Enqueue(tt.req)
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				var vErr *domain.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantReason, vErr.Reason)
			}

			assert.Empty(t, f.ctrl.Jobs(), "queue is unchanged")
			assert.Empty(t, f.recorder.Events())
		})
	}
}

func TestController_RunAndSummary(t *testing.T) {
	recovered := domain.Job{
		ID:        "old",
		JobType:   domain.JobTypeReconciliation,
		Collector: domain.CollectorYape,
		DateRange: domain.DateRange{From: date(1), To: date(2)},
		State:     domain.JobStateRunning,
		Progress:  30,
	}
	f := newFixture(t, catalog.Reconciliation, recovered)

	for _, col := range []domain.Collector{domain.CollectorKashio, domain.CollectorNiubiz} {
		_, err := f.ctrl.Enqueue(EnqueueRequest{
			JobType:   domain.JobTypeReconciliation,
			Collector: col,
			From:      date(14),
			To:        date(15),
		})
		require.NoError(t, err)
	}

	assert.Equal(t, Summary{Pending: 2, Running: 1, Recovered: 1, Total: 3}, f.ctrl.Summary())

	job, err := f.ctrl.Run("job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateRunning, job.State)

	_, err = f.ctrl.Run("job-1")
	assert.ErrorIs(t, err, domain.ErrJobNotPending)

	f.exec.Wait()

	_, err = f.ctrl.MarkFailed("old")
	require.NoError(t, err)

	assert.Equal(t, Summary{Pending: 1, Completed: 1, Error: 1, Total: 3}, f.ctrl.Summary())

	ids, err := f.ctrl.RunAllPending()
	require.NoError(t, err)
	assert.Equal(t, []string{"job-2"}, ids)
	f.exec.Wait()

	job, err = f.ctrl.Job("job-2")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, job.State)
	assert.Equal(t, "OK", job.Message)
}

func TestController_DestructiveActionsNeedConfirmation(t *testing.T) {
	seed := []domain.Job{
		{ID: "a", JobType: domain.JobTypeReconciliation, Collector: domain.CollectorKashio, State: domain.JobStatePending},
		{ID: "b", JobType: domain.JobTypeReconciliation, Collector: domain.CollectorKashio, State: domain.JobStateCompleted},
		{ID: "c", JobType: domain.JobTypeReconciliation, Collector: domain.CollectorKashio, State: domain.JobStateError},
		{ID: "d", JobType: domain.JobTypeReconciliation, Collector: domain.CollectorKashio, State: domain.JobStatePending},
	}
	f := newFixture(t, catalog.Reconciliation, seed...)

	_, err := f.ctrl.Delete("a", false)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	_, err = f.ctrl.Clear(false)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	_, err = f.ctrl.ClearTerminal(false)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Len(t, f.ctrl.Jobs(), 4)

	removed, err := f.ctrl.Delete("a", true)
	require.NoError(t, err)
	assert.Equal(t, "a", removed.ID)

	_, err = f.ctrl.Delete("a", true)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	n, err := f.ctrl.ClearTerminal(true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.ctrl.Jobs(), 1)
	assert.Equal(t, "d", f.ctrl.Jobs()[0].ID)

	n, err = f.ctrl.Clear(true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.ctrl.Jobs())

	assert.Equal(t, []events.Type{events.TypeJobDeleted, events.TypeQueueCleared, events.TypeQueueCleared}, f.recorder.Types())
}

func TestController_Limits(t *testing.T) {
	f := newFixture(t, catalog.Settlement)

	limits, err := f.ctrl.Limits(domain.JobTypeSettlement, domain.CollectorNiubiz)
	require.NoError(t, err)
	assert.Equal(t, date(16), limits.Today)
	assert.Equal(t, date(14), limits.Limit)
	assert.Equal(t, 2, limits.LagDays)

	_, err = f.ctrl.Limits(domain.JobTypeReconciliation, domain.CollectorNiubiz)
	assert.ErrorIs(t, err, domain.ErrInvalidSelection)
}
