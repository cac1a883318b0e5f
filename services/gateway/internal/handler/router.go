package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	pkgmiddleware "github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/services/gateway/internal/config"
	gwmiddleware "github.com/utafrali/storefront/services/gateway/internal/middleware"
	"github.com/utafrali/storefront/services/gateway/internal/proxy"
)

const serviceName = "gateway"

// NewRouter creates a chi router with global middleware, health endpoints,
// and proxy routes to the catalog, account and cart services. ctx bounds the rate
// limiter's background eviction.
func NewRouter(ctx context.Context, cfg *config.Config, sp *proxy.ServiceProxy, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	cors := pkgmiddleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	// Global middleware stack (applied in order).
	r.Use(pkgmiddleware.CORS(cors))
	r.Use(gwmiddleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.PrometheusMetrics(serviceName))
	r.Use(pkgmiddleware.Tracing(serviceName))
	r.Use(pkgmiddleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	// Metrics endpoint (IP-restricted)
	r.With(pkgmiddleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints (IP-restricted)
	pkgmiddleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Catalog service
	r.Handle("/api/products", sp.Handler("catalog"))
	r.Handle("/api/products/*", sp.Handler("catalog"))

	// Account service
	r.Handle("/api/account/*", sp.Handler("account"))

	// Cart service, which also owns payment intents.
	r.Handle("/api/cart", sp.Handler("cart"))
	r.Handle("/api/cart/*", sp.Handler("cart"))
	r.Handle("/api/payments", sp.Handler("cart"))

	return r
}
