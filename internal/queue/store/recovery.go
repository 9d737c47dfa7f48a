package store

import "github.com/cuongbtq/recon-queue/internal/queue/domain"

// ReconcileOnLoad prepares a freshly loaded queue. Any job persisted as
// running lost its ticker and in-flight call with the previous process, so
// it is flagged as recovered; it stays running until an operator resolves it.
// Duplicate ids keep their first occurrence.
func ReconcileOnLoad(raw []domain.Job) []domain.Job {
	jobs := make([]domain.Job, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, job := range raw {
		if _, dup := seen[job.ID]; dup {
			continue
		}
		seen[job.ID] = struct{}{}

		job.Normalize()
		if job.State == domain.JobStateRunning {
			job.Recovered = true
		}
		jobs = append(jobs, job)
	}

	return jobs
}
