package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/lead-router/api/responses"
	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/logger"
	"github.com/estatedesk/lead-router/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func newTestRouter(checks ...Check) (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	metrics.NewRoutingMetrics(reg).IncTransition("assigned", "external")
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	return NewRouter(RouterParams{Config: cfg, Logger: logger.Nop(), Checks: checks, Gatherer: reg}), reg
}

func TestHealthzIsLive(t *testing.T) {
	router, _ := newTestRouter(Check{Name: "db", Pinger: stubPinger{err: errors.New("down")}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get(envHeader))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestReadyzReportsFailingDependencies(t *testing.T) {
	router, _ := newTestRouter(
		Check{Name: "db", Pinger: stubPinger{}},
		Check{Name: "redis", Pinger: stubPinger{err: errors.New("connection refused")}},
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body responses.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "DEPENDENCY_ERROR", body.Error.Code)
	details, ok := body.Error.Details.(map[string]any)
	require.True(t, ok)
	require.Contains(t, details, "redis")
	require.NotContains(t, details, "db")
}

func TestReadyzWhenAllDependenciesRespond(t *testing.T) {
	router, _ := newTestRouter(Check{Name: "db", Pinger: stubPinger{}}, Check{Name: "transport", Pinger: stubPinger{}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsExposesRegistry(t *testing.T) {
	router, _ := newTestRouter()
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(raw), "lead_router_routing_transitions_total"))
}
