package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/datagrid-io/transferq/internal/api/model"
	"github.com/datagrid-io/transferq/shared/rabbitmq"
)

// Event types published on the job lifecycle exchange.
const (
	EventJobSubmitted = "job.submitted"
	EventJobCanceled  = "job.canceled"
)

// JobEvent is the message published when a job changes lifecycle state.
// Monitoring and accounting consumers subscribe to these; the API itself
// never consumes them.
type JobEvent struct {
	Event     string      `json:"event"`
	JobID     string      `json:"job_id"`
	JobState  model.State `json:"job_state"`
	UserDN    string      `json:"user_dn"`
	VOName    string      `json:"vo_name"`
	FileCount int         `json:"file_count"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher emits job lifecycle events to RabbitMQ.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates a Publisher on an established RabbitMQ client.
func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// PublishJobEvent publishes one lifecycle event for the given job.
func (p *Publisher) PublishJobEvent(ctx context.Context, event string, job *model.Job) error {
	msg := JobEvent{
		Event:     event,
		JobID:     job.JobID,
		JobState:  job.JobState,
		UserDN:    job.UserDN,
		VOName:    job.VOName,
		FileCount: len(job.Files),
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	if err := p.client.Publish(ctx, event, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}

	p.logger.Debug("Job event published",
		slog.String("event", event),
		slog.String("job_id", job.JobID),
		slog.String("job_state", job.JobState.String()),
	)

	return nil
}
