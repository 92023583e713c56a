package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/estatedesk/lead-router/api/middleware"
	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/estatedesk/lead-router/pkg/logger"
)

// RouterParams configure the ops router.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Checks   []Check
	Gatherer prometheus.Gatherer
}

// NewRouter serves liveness, readiness and Prometheus metrics.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	env := ""
	if params.Config != nil {
		env = params.Config.App.Env
	}
	r.Get("/healthz", HealthLive(env))
	r.Get("/readyz", HealthReady(env, params.Logger, params.Checks...))

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
