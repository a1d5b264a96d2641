package cli

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
)

// QueueStats summarises the default queue.
type QueueStats struct {
	Queue     string
	Size      int
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
	Processed int
	Failed    int
	Paused    bool
}

// JobsCLI exposes helpers for triggering and inspecting background jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

// NewJobsCLI constructs the helper wired to the provided Redis endpoint.
func NewJobsCLI(redisAddr, queue string) (*JobsCLI, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{
		client:    asynq.NewClient(opts),
		inspector: asynq.NewInspector(opts),
		queue:     queue,
	}, nil
}

// Close releases the underlying Asynq resources.
func (c *JobsCLI) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// Enqueue submits task to the configured queue.
func (c *JobsCLI) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	opts = append([]asynq.Option{asynq.Queue(c.queue)}, opts...)
	return c.client.EnqueueContext(ctx, task, opts...)
}

// InspectQueue reports queue statistics.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	if err := ctx.Err(); err != nil {
		return QueueStats{}, err
	}
	info, err := c.inspector.GetQueueInfo(c.queue)
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{
		Queue:     info.Queue,
		Size:      info.Size,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
		Paused:    info.Paused,
	}, nil
}

// ListScheduled returns upcoming scheduled tasks.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 20
	}
	return c.inspector.ListScheduledTasks(c.queue, asynq.PageSize(size))
}
