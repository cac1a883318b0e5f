package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/server"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/catalog/internal/config"
	handler "github.com/utafrali/storefront/services/catalog/internal/handler/http"
	"github.com/utafrali/storefront/services/catalog/internal/repository/postgres"
	"github.com/utafrali/storefront/services/catalog/internal/service"
	"github.com/utafrali/storefront/services/catalog/migrations"
)

// catalogCacheMaxAge is the Cache-Control max-age, in seconds, of public
// catalog reads.
const catalogCacheMaxAge = 30

// App is the catalog service: the read side of products and categories.
type App struct {
	srv *server.Server
}

// NewApp opens Postgres, applies migrations and mounts the catalog API.
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
	logger.Info("postgres connected",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "catalog"); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fail("run migrations", err)
	}
	database.SetSlowQueryLogging(cfg.SlowQueryWarnAt, logger)

	products := service.NewCatalogService(postgres.NewProductRepository(pool), logger)

	probes := health.NewHandler()
	probes.RegisterCritical("postgres", func(ctx context.Context) error { return pool.Ping(ctx) })

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins, cors.Environment = cfg.CORSAllowedOrigins, cfg.Environment
	srv.Mount(handler.NewRouter(products, probes, logger, handler.RouterConfig{
		CORS:              cors,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		CacheMaxAge:       catalogCacheMaxAge,
	}))

	return &App{srv: srv}, nil
}

// Run serves until ctx is canceled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	return a.srv.Run(ctx)
}

// Shutdown drains HTTP, closes the pool, then flushes spans.
func (a *App) Shutdown() error {
	return a.srv.Shutdown()
}
