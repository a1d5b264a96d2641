package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	next:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("events:complete").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, metrics.Track("events:complete").End(boom), boom)
	metrics.AddItems("events:complete", 3)
	metrics.AddItems("events:complete", 0)

	job := map[string]string{"job": "events:complete"}
	assert.Equal(t, 1.0, counterValue(t, registry, "backoffice_jobs_total", map[string]string{"job": "events:complete", "status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, registry, "backoffice_jobs_total", map[string]string{"job": "events:complete", "status": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, registry, "backoffice_jobs_failures_total", job))
	assert.Equal(t, 3.0, counterValue(t, registry, "backoffice_job_items_total", job))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, metrics.Track("mail:send").End(boom), boom)
	metrics.AddItems("mail:send", 1)
}
