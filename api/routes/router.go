package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/homecook-backend/api/controllers"
	"github.com/angelmondragon/homecook-backend/api/middleware"
	"github.com/angelmondragon/homecook-backend/internal/sla"
	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Deps     map[string]controllers.Pinger
	SLA      *sla.Service
	Gatherer prometheus.Gatherer
}

// NewRouter builds the ops surface: probes, Prometheus scrape and a dry-run
// view of overdue orders.
func NewRouter(params Params) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(params.Config))
		r.Get("/ready", controllers.HealthReady(params.Config, params.Logger, params.Deps))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if params.SLA != nil {
		r.Get("/ops/order-timeouts", controllers.OrderTimeouts(params.SLA, params.Logger))
	}
	return r
}
