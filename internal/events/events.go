// Package events publishes job lifecycle events for other back-office
// consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

// Type names a lifecycle event.
type Type string

const (
	TypeJobEnqueued  Type = "job.enqueued"
	TypeJobStarted   Type = "job.started"
	TypeJobCompleted Type = "job.completed"
	TypeJobFailed    Type = "job.failed"
	TypeJobResolved  Type = "job.resolved"
	TypeJobDeleted   Type = "job.deleted"
	TypeQueueCleared Type = "queue.cleared"
)

// DefaultPublishTimeout bounds a single Emit.
const DefaultPublishTimeout = 2 * time.Second

// Event is the published message body.
type Event struct {
	Type       Type             `json:"type"`
	Variant    string           `json:"variant"`
	JobID      string           `json:"jobId,omitempty"`
	JobType    domain.JobType   `json:"jobType,omitempty"`
	Collector  domain.Collector `json:"collector,omitempty"`
	State      domain.JobState  `json:"state,omitempty"`
	Message    string           `json:"message,omitempty"`
	Count      int              `json:"count,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// ForJob builds an event describing job.
func ForJob(t Type, job domain.Job) Event {
	return Event{
		Type:      t,
		JobID:     job.ID,
		JobType:   job.JobType,
		Collector: job.Collector,
		State:     job.State,
		Message:   job.Message,
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events; used when messaging is disabled.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Sender is the slice of the RabbitMQ client used here.
type Sender interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// AMQPPublisher publishes events as JSON with routing key
// jobs.<variant>.<type>.
type AMQPPublisher struct {
	sender Sender
}

// NewAMQPPublisher wraps a RabbitMQ sender.
func NewAMQPPublisher(sender Sender) *AMQPPublisher {
	return &AMQPPublisher{sender: sender}
}

// RoutingKey returns the routing key of event.
func RoutingKey(event Event) string {
	return fmt.Sprintf("jobs.%s.%s", event.Variant, event.Type)
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.sender.PublishWithRetry(ctx, RoutingKey(event), body, "application/json")
}

// Emitter stamps events with a variant and time and publishes them; failures
// are logged and never returned.
type Emitter struct {
	publisher Publisher
	variant   string
	logger    *slog.Logger
	now       func() time.Time
	timeout   time.Duration
}

// NewEmitter creates an emitter for one queue variant.
func NewEmitter(publisher Publisher, variant string, logger *slog.Logger) *Emitter {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Emitter{
		publisher: publisher,
		variant:   variant,
		logger:    logger,
		now:       time.Now,
		timeout:   DefaultPublishTimeout,
	}
}

// Emit publishes event.
func (e *Emitter) Emit(event Event) {
	event.Variant = e.variant
	event.OccurredAt = e.now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish job event",
			slog.String("type", string(event.Type)),
			slog.String("job_id", event.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of what was published.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the published event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
