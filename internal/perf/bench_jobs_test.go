package perf

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/ticketdesk/backoffice/internal/jobs"
	"github.com/ticketdesk/backoffice/jobs"
)

// Mirrors the JobFailures alert: more than three failures per job in 30m pages.
const jobFailureAlertThreshold = 3

type stallingWarmer struct {
	mu     sync.Mutex
	calls  int
	stalls map[int]bool
}

func (w *stallingWarmer) Warm(ctx context.Context) error {
	w.mu.Lock()
	w.calls++
	stall := w.stalls[w.calls]
	w.mu.Unlock()
	if stall {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

type sweepCompleter struct {
	perDay map[string]int
	seen   []time.Time
}

func (c *sweepCompleter) CompletePast(_ context.Context, asOf time.Time) (int, error) {
	c.seen = append(c.seen, asOf)
	return c.perDay[asOf.Format("2006-01-02")], nil
}

type keyCleaner struct {
	retentions []time.Duration
	err        error
}

func (k *keyCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	k.retentions = append(k.retentions, olderThan)
	if k.err != nil {
		return 0, k.err
	}
	return int64(olderThan / time.Hour), nil
}

func TestSalesWarmupTimeoutBoundsStalledRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	warmer := &stallingWarmer{stalls: map[int]bool{5: true, 17: true}}
	job := jobs.NewSalesWarmupJob(warmer, nil, metrics)
	job.Timeout = 20 * time.Millisecond

	for i := 0; i < 24; i++ {
		err := job.Handle(context.Background(), jobs.NewSalesWarmupTask())
		if (i == 4 || i == 16) != (err != nil) {
			t.Fatalf("run %d: unexpected result %v", i+1, err)
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("run %d: stalled warmup should hit the timeout, got %v", i+1, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	failures := metricValue(t, families, "backoffice_jobs_failures_total", map[string]string{"job": jobs.TaskSalesWarmup})
	if failures != 2 {
		t.Fatalf("expected 2 warmup failures, got %f", failures)
	}
	if failures > jobFailureAlertThreshold {
		t.Fatalf("warmup failures would page: %f", failures)
	}
	success := metricValue(t, families, "backoffice_jobs_total", map[string]string{"job": jobs.TaskSalesWarmup, "status": "success"})
	if success != 22 {
		t.Fatalf("expected 22 successful warmups, got %f", success)
	}
	if mean := histogramMean(t, families, "backoffice_job_duration_seconds", map[string]string{"job": jobs.TaskSalesWarmup}); mean > 0.5 {
		t.Fatalf("warmup duration not bounded by the timeout: %f", mean)
	}
}

func TestCompletionSweepCountsCompletedEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	completer := &sweepCompleter{perDay: map[string]int{"2025-06-01": 3, "2025-06-02": 0, "2025-06-03": 5}}
	job := jobs.NewEventsCompleteJob(completer, nil, metrics)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		asOf := start.AddDate(0, 0, day)
		task, err := jobs.NewEventsCompleteTask(&asOf)
		if err != nil {
			t.Fatalf("build task: %v", err)
		}
		if err := job.Handle(context.Background(), task); err != nil {
			t.Fatalf("sweep %d: %v", day, err)
		}
	}
	if len(completer.seen) != 3 || !completer.seen[2].Equal(start.AddDate(0, 0, 2)) {
		t.Fatalf("sweeps did not honour the payload date: %v", completer.seen)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if items := metricValue(t, families, "backoffice_job_items_total", map[string]string{"job": jobs.TaskEventsComplete}); items != 8 {
		t.Fatalf("expected 8 completed events, got %f", items)
	}
	if runs := metricValue(t, families, "backoffice_jobs_total", map[string]string{"job": jobs.TaskEventsComplete, "status": "success"}); runs != 3 {
		t.Fatalf("expected 3 sweeps, got %f", runs)
	}
}

func TestIdempotencyCleanupFailuresReachAlert(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	cleaner := &keyCleaner{}
	job := jobs.NewIdempotencyCleanupJob(cleaner, 0, nil, metrics)

	task, err := jobs.NewIdempotencyCleanupTask(48 * time.Hour)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if cleaner.retentions[0] != 48*time.Hour {
		t.Fatalf("payload retention ignored: %s", cleaner.retentions[0])
	}

	scheduled, err := jobs.NewTask(jobs.TaskIdempotencyCleanup)
	if err != nil {
		t.Fatalf("build scheduled task: %v", err)
	}
	cleaner.err = errors.New("connection reset")
	for i := 0; i <= jobFailureAlertThreshold; i++ {
		if err := job.Handle(context.Background(), scheduled); err == nil {
			t.Fatal("expected cleanup failure to propagate")
		}
	}
	if cleaner.retentions[1] != 24*time.Hour {
		t.Fatalf("expected default retention, got %s", cleaner.retentions[1])
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if purged := metricValue(t, families, "backoffice_job_items_total", map[string]string{"job": jobs.TaskIdempotencyCleanup}); purged != 48 {
		t.Fatalf("expected 48 purged keys, got %f", purged)
	}
	if failures := metricValue(t, families, "backoffice_jobs_failures_total", map[string]string{"job": jobs.TaskIdempotencyCleanup}); failures <= jobFailureAlertThreshold {
		t.Fatalf("repeated cleanup failures should cross the alert threshold, got %f", failures)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
