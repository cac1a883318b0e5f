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
	"github.com/utafrali/storefront/services/cart/internal/service"
)

const serviceName = "cart"

// RouterConfig carries the HTTP surface settings of the cart service.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
	BuyerCookie       BuyerCookieConfig
	// Tokens validates bearer credentials; nil accepts cookie buyers only.
	Tokens middleware.TokenValidator
}

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(cartService *service.CartService, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	if cfg.Tokens != nil {
		r.Use(middleware.OptionalAuth(cfg.Tokens))
	}
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints (IP-restricted)
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	cartHandler := NewCartHandler(cartService, cfg.BuyerCookie, logger)

	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(ResolveBuyer)

		r.Get("/api/cart", cartHandler.GetCart)
		r.Post("/api/cart", cartHandler.AddItem)
		r.Delete("/api/cart", cartHandler.RemoveItem)
		r.Delete("/api/cart/all", cartHandler.ClearCart)

		r.Post("/api/payments", cartHandler.CreatePaymentIntent)
	})

	return r
}
