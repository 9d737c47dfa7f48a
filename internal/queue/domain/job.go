package domain

import "time"

// JobType is the collector-invocation family a job belongs to.
type JobType string

const (
	JobTypeReconciliation JobType = "reconciliation"
	JobTypeSettlement     JobType = "settlement"
)

// Collector identifies a payment collector.
type Collector string

const (
	CollectorKashio       Collector = "Kashio"
	CollectorNiubiz       Collector = "Niubiz"
	CollectorIzipay       Collector = "Izipay"
	CollectorPagoEfectivo Collector = "PagoEfectivo"
	CollectorYape         Collector = "Yape"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateError     JobState = "error"
)

// Terminal reports whether no further automatic transition can happen.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateError
}

const (
	// MinProgress and MaxProgress bound Job.Progress.
	MinProgress = 0
	MaxProgress = 100
)

// DateRange is an inclusive pair of calendar dates.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Job is one enqueued request to run a remote reconciliation or settlement
// for a collector and date range. It only carries plain data so the whole
// queue can be written to a persisted slot at any time.
type Job struct {
	ID         string    `json:"id"`
	JobType    JobType   `json:"jobType"`
	Collector  Collector `json:"collector"`
	DateRange  DateRange `json:"dateRange"`
	State      JobState  `json:"state"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Recovered  bool      `json:"recovered"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Normalize re-establishes the progress and recovered invariants after a
// mutation.
func (j *Job) Normalize() {
	switch j.State {
	case JobStateCompleted:
		j.Progress = MaxProgress
	case JobStateError:
		j.Progress = MinProgress
	}

	if j.Progress < MinProgress {
		j.Progress = MinProgress
	}
	if j.Progress > MaxProgress {
		j.Progress = MaxProgress
	}

	if j.State != JobStateRunning {
		j.Recovered = false
	}
}

// CanTransition enforces the job state machine edges.
func CanTransition(from, to JobState) bool {
	switch from {
	case JobStatePending:
		return to == JobStateRunning
	case JobStateRunning:
		return to == JobStateCompleted || to == JobStateError
	default:
		return false
	}
}
