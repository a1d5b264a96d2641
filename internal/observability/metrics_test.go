package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesRuntimeMetrics(t *testing.T) {
	body := scrape(t, NewMetrics())
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/admin/events/{id}")
	req := httptest.NewRequest(http.MethodGet, "/api/admin/events/4", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `backoffice_http_requests_total{code="418",route="/api/admin/events/{id}"} 1`)
	assert.Contains(t, body, `backoffice_http_request_duration_seconds_bucket{route="/api/admin/events/{id}"`)
}

func TestMetricsDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveAuthz("permission", "deny")
	metrics.ObserveAuthz("permission", "deny")
	metrics.ObserveAuthz("role", "allow")
	metrics.ObserveTransition("PENDING", "APPROVED")

	body := scrape(t, metrics)
	assert.Contains(t, body, `backoffice_authz_decisions_total{check="permission",decision="deny"} 2`)
	assert.Contains(t, body, `backoffice_authz_decisions_total{check="role",decision="allow"} 1`)
	assert.Contains(t, body, `backoffice_event_transitions_total{from="PENDING",to="APPROVED"} 1`)
}

func TestNilMetricsAreInert(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveAuthz("role", "allow")
	metrics.ObserveTransition("DRAFT", "PENDING")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
