package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/brewpos-backend/api/controllers"
	"github.com/angelmondragon/brewpos-backend/api/middleware"
	"github.com/angelmondragon/brewpos-backend/pkg/logger"
)

// OpsParams wires the operational endpoints.
type OpsParams struct {
	Env      string
	Logger   *logger.Logger
	Checks   map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

// NewOpsRouter serves liveness, readiness and metrics. It carries no domain routes.
func NewOpsRouter(params OpsParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Get("/healthz", controllers.HealthLive(params.Env))
	r.Get("/readyz", controllers.HealthReady(params.Env, params.Logger, params.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
