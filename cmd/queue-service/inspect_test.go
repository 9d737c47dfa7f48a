package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/cuongbtq/recon-queue/internal/queue/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dataDir string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "storage:\n  driver: file\n  data_dir: " + dataDir + "\n" +
		"backend:\n  base_url: http://localhost:3000/api\n" +
		"logging:\n  level: error\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunJobsList(t *testing.T) {
	dataDir := t.TempDir()
	slot := persistence.NewFileSlot(dataDir, "settlement_queue")

	require.NoError(t, slot.Save(context.Background(), []domain.Job{
		{
			ID:        "job-running",
			JobType:   domain.JobTypeSettlement,
			Collector: domain.CollectorNiubiz,
			DateRange: domain.DateRange{
				From: time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2026, time.October, 3, 0, 0, 0, 0, time.UTC),
			},
			State:    domain.JobStateRunning,
			Progress: 35,
		},
		{
			ID:        "job-done",
			JobType:   domain.JobTypeSettlement,
			Collector: domain.CollectorKashio,
			State:     domain.JobStateCompleted,
			Progress:  100,
			Message:   "OK",
		},
	}))
	before, err := os.ReadFile(slot.Path())
	require.NoError(t, err)

	var out bytes.Buffer
	err = runJobsList(context.Background(), &out, writeConfig(t, dataDir), "settlement", "", false)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "running (recovered)")
	assert.Contains(t, out.String(), "2026-10-01")
	assert.Contains(t, out.String(), "2 job(s) in settlement queue")

	after, err := os.ReadFile(slot.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after, "listing never rewrites the slot")

	out.Reset()
	err = runJobsList(context.Background(), &out, writeConfig(t, dataDir), "settlement", "completed", true)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"id": "job-done"`)
	assert.NotContains(t, out.String(), "job-running")

	err = runJobsList(context.Background(), &out, writeConfig(t, dataDir), "payouts", "", false)
	assert.ErrorIs(t, err, domain.ErrUnknownVariant)
}

func TestRunCatalog(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCatalog(&out))

	assert.Contains(t, out.String(), "conciliation/kashio/reconcile")
	assert.Contains(t, out.String(), "liquidation/izipay/settle")
	assert.Contains(t, out.String(), "(not mapped)")
}
