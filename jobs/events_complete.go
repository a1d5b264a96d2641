package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ticketdesk/backoffice/internal/jobs"
)

// EventCompleter moves past approved events to COMPLETED.
type EventCompleter interface {
	CompletePast(ctx context.Context, asOf time.Time) (int, error)
}

// EventsCompleteJob runs the completion sweep.
type EventsCompleteJob struct {
	Events  EventCompleter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewEventsCompleteJob constructs the job handler.
func NewEventsCompleteJob(events EventCompleter, logger *slog.Logger, metrics *jobmetrics.Metrics) *EventsCompleteJob {
	return &EventsCompleteJob{
		Events:  events,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the completion sweep.
func (j *EventsCompleteJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Events == nil {
		return errors.New("events complete: handler not configured")
	}
	var payload EventsCompletePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	asOf := j.now()
	if payload.AsOf != nil {
		asOf = payload.AsOf.UTC()
	}

	tracker := j.metrics().Track(TaskEventsComplete)
	logger := j.logger().With(slog.Time("as_of", asOf))
	completed, err := j.Events.CompletePast(ctx, asOf)
	j.metrics().AddItems(TaskEventsComplete, completed)
	if err != nil {
		logger.Error("complete past events", slog.Int("completed", completed), slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("completed past events", slog.Int("completed", completed))
	return tracker.End(nil)
}

func (j *EventsCompleteJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *EventsCompleteJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskEventsComplete))
	}
	return slog.Default().With(slog.String("job", TaskEventsComplete))
}

func (j *EventsCompleteJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
