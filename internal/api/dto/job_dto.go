package dto

import (
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

type EnqueueJobRequest struct {
	JobType   string `json:"jobType"`
	Collector string `json:"collector"`
	From      string `json:"from"` // YYYY-MM-DD
	To        string `json:"to"`   // YYYY-MM-DD
}

type ListJobsRequest struct {
	State string `form:"state"`
}

type ConfirmRequest struct {
	Confirm bool `form:"confirm"`
}

type LimitsRequest struct {
	JobType   string `form:"job_type"`
	Collector string `form:"collector"`
}

type ListJobsResponse struct {
	Jobs  []JobDTO `json:"jobs"`
	Total int      `json:"total"`
}

type RunPendingResponse struct {
	Started  []string `json:"started"`
	Rejected []string `json:"rejected,omitempty"`
}

type RemovedResponse struct {
	Removed int `json:"removed"`
}

type LimitsResponse struct {
	JobType   string `json:"jobType"`
	Collector string `json:"collector"`
	Today     string `json:"today"`
	Limit     string `json:"limit"`
	LagDays   int    `json:"lagDays"`
}

type JobDTO struct {
	ID         string `json:"id"`
	JobType    string `json:"jobType"`
	Collector  string `json:"collector"`
	From       string `json:"from"`
	To         string `json:"to"`
	State      string `json:"state"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
	Recovered  bool   `json:"recovered"`
	EnqueuedAt string `json:"enqueuedAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// FromJob renders a job for the API.
func FromJob(job domain.Job) JobDTO {
	return JobDTO{
		ID:         job.ID,
		JobType:    string(job.JobType),
		Collector:  string(job.Collector),
		From:       job.DateRange.From.Format(domain.DateLayout),
		To:         job.DateRange.To.Format(domain.DateLayout),
		State:      string(job.State),
		Progress:   job.Progress,
		Message:    job.Message,
		Recovered:  job.Recovered,
		EnqueuedAt: job.EnqueuedAt.Format(time.RFC3339),
		UpdatedAt:  job.UpdatedAt.Format(time.RFC3339),
	}
}

// FromJobs renders a list of jobs.
func FromJobs(jobs []domain.Job) []JobDTO {
	out := make([]JobDTO, len(jobs))
	for i, job := range jobs {
		out[i] = FromJob(job)
	}
	return out
}
