package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/pkg/auth"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/server"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/cart/internal/catalog"
	"github.com/utafrali/storefront/services/cart/internal/config"
	"github.com/utafrali/storefront/services/cart/internal/event"
	handler "github.com/utafrali/storefront/services/cart/internal/handler/http"
	"github.com/utafrali/storefront/services/cart/internal/payment"
	redisrepo "github.com/utafrali/storefront/services/cart/internal/repository/redis"
	"github.com/utafrali/storefront/services/cart/internal/service"
)

// The cart service only validates bearer tokens; the TTL applies to tokens
// minted by tooling against the same manager.
const accessTokenTTL = time.Hour

// App is the cart service: Redis-backed baskets priced from the catalog.
type App struct {
	srv *server.Server
}

// NewApp connects Redis and Kafka and mounts the cart API. Kafka being down
// only degrades readiness.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := server.New(cfg.HTTPPort, logger)
	fail := func(step string, err error) (*App, error) {
		return nil, errors.Join(fmt.Errorf("%s: %w", step, err), srv.Shutdown())
	}

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return fail("init tracer", err)
	}
	srv.OnShutdown("tracer", shutdownTracer)

	redisCfg := cfg.Redis()
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return fail("connect to redis", err)
	}
	srv.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
	logger.Info("redis connected", slog.String("addr", redisCfg.Addr()), slog.Int("db", redisCfg.DB))

	producer := pkgkafka.NewProducer(cfg.KafkaBrokers, logger)
	srv.OnShutdown("kafka", func(context.Context) error { return producer.Close() })
	if err := producer.WaitReady(ctx, 3, time.Second); err != nil {
		logger.Warn("cart events disabled until kafka recovers", slog.String("error", err.Error()))
	}

	products, err := catalog.NewClient(cfg.CatalogURL, logger)
	if err != nil {
		return fail("create catalog client", err)
	}

	carts := service.NewCartService(
		redisrepo.NewCartRepository(rdb, cfg.TTL()),
		products,
		payment.NewMockProvider(logger),
		event.NewProducer(producer, logger),
		logger,
	)

	probes := health.NewHandler()
	probes.RegisterCritical("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	probes.RegisterNonCritical("kafka", producer.Ping)
	probes.RegisterNonCritical("catalog", products.Ping)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins, cors.Environment = cfg.CORSAllowedOrigins, cfg.Environment
	srv.Mount(handler.NewRouter(carts, probes, logger, handler.RouterConfig{
		CORS:              cors,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		BuyerCookie:       handler.BuyerCookieConfig{Secure: cfg.CookieSecure},
		Tokens:            auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, accessTokenTTL).TokenValidator(),
	}))

	return &App{srv: srv}, nil
}

// Run serves until ctx is canceled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	return a.srv.Run(ctx)
}

// Shutdown drains HTTP, closes the producer and Redis, then flushes spans.
func (a *App) Shutdown() error {
	return a.srv.Shutdown()
}
