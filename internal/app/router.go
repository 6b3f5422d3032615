package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heartmarshall/shop-catalog-backend/internal/config"
	"github.com/heartmarshall/shop-catalog-backend/internal/metrics"
	"github.com/heartmarshall/shop-catalog-backend/internal/transport/middleware"
	"github.com/heartmarshall/shop-catalog-backend/internal/transport/rest"
)

// routerDeps holds everything the HTTP router is assembled from. Metrics,
// gatherer and limiter are optional.
type routerDeps struct {
	cfg      *config.Config
	log      *slog.Logger
	catalog  *rest.CatalogHandler
	health   *rest.HealthHandler
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	limiter  *middleware.RateLimiter
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.Recovery(d.log),
		middleware.Logger(d.log),
	)
	if d.metrics != nil {
		r.Use(middleware.Metrics(d.metrics))
	}
	r.Use(middleware.CORS(d.cfg.CORS))

	r.Get("/live", d.health.Live)
	r.Get("/ready", d.health.Ready)
	r.Get("/health", d.health.Health)

	if d.cfg.Metrics.Enabled && d.gatherer != nil {
		r.Method(http.MethodGet, d.cfg.Metrics.Path, promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))
	}

	writeMW := []func(http.Handler) http.Handler{
		middleware.BodyLimit(d.cfg.Server.MaxBodyBytes),
	}
	if d.limiter != nil {
		writeMW = append(writeMW, d.limiter.Limit())
	}
	d.catalog.Mount(r, writeMW...)

	return r
}
