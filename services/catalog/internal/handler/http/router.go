package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/services/catalog/internal/service"
)

const serviceName = "catalog"

// RouterConfig carries the HTTP surface settings of the catalog service.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
	// CacheMaxAge is the Cache-Control max-age for product reads; zero disables it.
	CacheMaxAge int
}

// NewRouter creates a chi router with all catalog service routes registered.
func NewRouter(catalogService *service.CatalogService, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints (IP-restricted)
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	productHandler := NewProductHandler(catalogService, logger)

	r.Route("/api/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		if cfg.CacheMaxAge > 0 {
			r.Use(middleware.CacheControl(cfg.CacheMaxAge))
		}

		r.Get("/", productHandler.ListProducts)
		// Registered before {id} so "filters" is not parsed as an id.
		r.Get("/filters", productHandler.GetFilters)
		r.Get("/{id}", productHandler.GetProduct)
	})

	return r
}

// ContentTypeJSON sets the JSON content type on every API response.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
