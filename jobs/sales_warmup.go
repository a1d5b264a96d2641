package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ticketdesk/backoffice/internal/jobs"
)

// SalesWarmer recomputes cached sales figures.
type SalesWarmer interface {
	Warm(ctx context.Context) error
}

// SalesWarmupJob pre-populates the sales report cache.
type SalesWarmupJob struct {
	Sales   SalesWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewSalesWarmupJob wires dependencies for the warmup handler.
func NewSalesWarmupJob(sales SalesWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SalesWarmupJob {
	return &SalesWarmupJob{Sales: sales, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes sales warmup tasks.
func (j *SalesWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Sales == nil {
		return errors.New("sales warmup: handler not configured")
	}
	tracker := j.metrics().Track(TaskSalesWarmup)
	logger := j.logger()
	start := time.Now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	if err := j.Sales.Warm(ctx); err != nil {
		logger.Error("sales warmup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("completed sales warmup", slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

func (j *SalesWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSalesWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSalesWarmup))
}

func (j *SalesWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
