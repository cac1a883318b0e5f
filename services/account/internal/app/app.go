package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/pkg/auth"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/server"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/account/internal/config"
	"github.com/utafrali/storefront/services/account/internal/event"
	handler "github.com/utafrali/storefront/services/account/internal/handler/http"
	"github.com/utafrali/storefront/services/account/internal/repository/postgres"
	"github.com/utafrali/storefront/services/account/internal/service"
	"github.com/utafrali/storefront/services/account/migrations"
)

// App is the account service: registration, login and bearer tokens.
type App struct {
	srv *server.Server
}

// NewApp opens Postgres, applies migrations and mounts the account API.
// Registration events are best effort, so Kafka is not waited for.
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

	pgCfg := cfg.Pool()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return fail("connect to postgres", err)
	}
	srv.OnShutdownFunc("postgres", pool.Close)
	logger.Info("postgres connected", slog.String("host", pgCfg.Host), slog.String("database", pgCfg.DBName))

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "account"); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fail("run migrations", err)
	}

	producer := pkgkafka.NewProducer(cfg.KafkaBrokers, logger)
	srv.OnShutdown("kafka", func(context.Context) error { return producer.Close() })
	if err := producer.Ping(ctx); err != nil {
		logger.Warn("registration events disabled until kafka recovers", slog.String("error", err.Error()))
	}

	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL)
	accounts, err := service.NewAccountService(
		postgres.NewAccountRepository(pool),
		tokens,
		event.NewProducer(producer, logger),
		cfg.BcryptCost,
		logger,
	)
	if err != nil {
		return fail("init account service", err)
	}

	probes := health.NewHandler()
	probes.RegisterCritical("postgres", func(ctx context.Context) error { return pool.Ping(ctx) })
	probes.RegisterNonCritical("kafka", producer.Ping)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins, cors.Environment = cfg.CORSAllowedOrigins, cfg.Environment
	srv.Mount(handler.NewRouter(accounts, probes, logger, handler.RouterConfig{
		CORS:              cors,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		Tokens:            tokens.TokenValidator(),
	}))

	return &App{srv: srv}, nil
}

// Run serves until ctx is canceled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	return a.srv.Run(ctx)
}

// Shutdown drains HTTP, closes the producer and the pool, then flushes spans.
func (a *App) Shutdown() error {
	return a.srv.Shutdown()
}
