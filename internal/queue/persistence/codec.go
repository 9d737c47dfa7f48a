// Package persistence implements store.Persister over a JSON file, a SQL
// slot table and process memory. Every adapter stores the queue as one JSON
// array of jobs.
package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

func encode(jobs []domain.Job) ([]byte, error) {
	if jobs == nil {
		jobs = []domain.Job{}
	}
	data, err := json.Marshal(jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job queue: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.Job, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var jobs []domain.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode job queue: %w", err)
	}
	return jobs, nil
}
