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
)

const serviceName = "account"

// RouterConfig carries the HTTP surface settings of the account service.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
	Tokens            middleware.TokenValidator
}

// NewRouter creates a chi router with all account service routes registered.
func NewRouter(accountService AccountService, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
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

	accountHandler := NewAccountHandler(accountService, logger)

	r.Route("/api/account", func(r chi.Router) {
		r.Post("/register", accountHandler.Register)
		r.Post("/login", accountHandler.Login)
		r.With(middleware.Auth(cfg.Tokens)).Get("/currentUser", accountHandler.CurrentUser)
	})

	return r
}
