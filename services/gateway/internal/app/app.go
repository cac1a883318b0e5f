package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/server"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/gateway/internal/config"
	"github.com/utafrali/storefront/services/gateway/internal/handler"
	"github.com/utafrali/storefront/services/gateway/internal/proxy"
)

// App is the API gateway. It keeps no state beyond rate limiter buckets.
type App struct {
	srv *server.Server
}

// NewApp builds the upstream proxies and mounts the public router.
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

	upstreams, err := proxy.NewServiceProxy(cfg.Upstreams(), proxy.TransportConfig{
		DialTimeout:     cfg.ProxyDialTimeout,
		ResponseTimeout: cfg.ProxyResponseTimeout,
		IdleTimeout:     cfg.ProxyIdleTimeout,
		MaxIdleConns:    cfg.ProxyMaxIdleConns,
	}, logger)
	if err != nil {
		return fail("init service proxy", err)
	}

	// A dead upstream only degrades readiness; its routes answer 502.
	probes := health.NewHandler()
	probe := httpclient.New(httpclient.Config{Timeout: 2 * time.Second})
	for _, name := range upstreams.Services() {
		target, _ := upstreams.Target(name)
		liveURL := target.JoinPath("health", "live").String()
		probes.RegisterNonCritical(name, func(ctx context.Context) error {
			return probeLive(ctx, probe, liveURL)
		})
	}

	// Lives until shutdown so the limiter's janitor keeps evicting buckets.
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	srv.OnShutdownFunc("rate limiter", stopLimiter)
	srv.Mount(handler.NewRouter(limiterCtx, cfg, upstreams, probes, logger))

	return &App{srv: srv}, nil
}

// Run serves until ctx is canceled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	return a.srv.Run(ctx)
}

// Shutdown drains HTTP, stops the limiter janitor, then flushes spans.
func (a *App) Shutdown() error {
	return a.srv.Shutdown()
}

func probeLive(ctx context.Context, client *httpclient.Client, liveURL string) error {
	resp, err := client.Get(ctx, liveURL)
	if err != nil {
		return fmt.Errorf("upstream unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream liveness returned %d", resp.StatusCode)
	}
	return nil
}
