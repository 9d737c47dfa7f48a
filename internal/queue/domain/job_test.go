package domain

import (
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Normalize(t *testing.T) {
	tests := []struct {
		name          string
		job           Job
		wantProgress  int
		wantRecovered bool
	}{
		{
			name:         "completed forces full progress",
			job:          Job{State: JobStateCompleted, Progress: 64},
			wantProgress: 100,
		},
		{
			name:         "error resets progress",
			job:          Job{State: JobStateError, Progress: 64},
			wantProgress: 0,
		},
		{
			name:          "running progress is clamped",
			job:           Job{State: JobStateRunning, Progress: 140, Recovered: true},
			wantProgress:  100,
			wantRecovered: true,
		},
		{
			name:         "negative progress",
			job:          Job{State: JobStatePending, Progress: -3},
			wantProgress: 0,
		},
		{
			name:         "recovered only while running",
			job:          Job{State: JobStatePending, Recovered: true},
			wantProgress: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := tt.job
			job.Normalize()
			assert.Equal(t, tt.wantProgress, job.Progress)
			assert.Equal(t, tt.wantRecovered, job.Recovered)
		})
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]JobState]bool{
		{JobStatePending, JobStateRunning}:   true,
		{JobStateRunning, JobStateCompleted}: true,
		{JobStateRunning, JobStateError}:     true,
	}
	states := []JobState{JobStatePending, JobStateRunning, JobStateCompleted, JobStateError}

	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]JobState{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestJobState_Terminal(t *testing.T) {
	assert.False(t, JobStatePending.Terminal())
	assert.False(t, JobStateRunning.Terminal())
	assert.True(t, JobStateCompleted.Terminal())
	assert.True(t, JobStateError.Terminal())
}

func TestDateOf(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	// 03:00 UTC is still the previous evening in Lima.
	instant := time.Date(2026, time.October, 17, 3, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), DateOf(instant, lima))
	assert.Equal(t, time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC), DateOf(instant, time.UTC))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), AddDays(d, 1))
	assert.Equal(t, "28022026", d.Format(BackendDateLayout))

	_, err = ParseDate("28/02/2026")
	assert.ErrorContains(t, err, "want YYYY-MM-DD")
}
