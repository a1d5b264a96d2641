package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ticketdesk/backoffice/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskSalesWarmup recomputes the unfiltered sales report into the cache.
	TaskSalesWarmup = "sales:warmup"
	// TaskEventsComplete completes approved events whose date has passed.
	TaskEventsComplete = "events:complete"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// EventsCompletePayload optionally pins the cut-off instant.
type EventsCompletePayload struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// IdempotencyCleanupPayload overrides the configured retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewSalesWarmupTask constructs the cache warmup task.
func NewSalesWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskSalesWarmup, []byte("{}"), asynq.Queue(QueueDefault))
}

// NewEventsCompleteTask constructs the completion sweep task.
func NewEventsCompleteTask(asOf *time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(EventsCompletePayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEventsComplete, data, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the key purge task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}

// NewTask builds a task by type with default payloads, used by the operator CLI.
func NewTask(taskType string) (*asynq.Task, error) {
	switch taskType {
	case TaskSalesWarmup:
		return NewSalesWarmupTask(), nil
	case TaskEventsComplete:
		return NewEventsCompleteTask(nil)
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(0)
	default:
		return nil, ErrUnknownTask
	}
}

// DefaultSchedule returns the cron registrations the worker installs.
func DefaultSchedule(salesWarmup string) ([]CronRegistration, error) {
	if salesWarmup == "" {
		salesWarmup = "@every 10m"
	}
	complete, err := NewEventsCompleteTask(nil)
	if err != nil {
		return nil, err
	}
	cleanup, err := NewIdempotencyCleanupTask(0)
	if err != nil {
		return nil, err
	}
	return []CronRegistration{
		{Spec: salesWarmup, Task: NewSalesWarmupTask()},
		{Spec: "*/15 * * * *", Task: complete},
		{Spec: "0 3 * * *", Task: cleanup},
	}, nil
}
