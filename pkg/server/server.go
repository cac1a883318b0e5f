// Package server runs a service's HTTP listener and releases its
// dependencies when the listener stops.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	drainTimeout   = 5 * time.Second
	releaseTimeout = 3 * time.Second
)

type release struct {
	name string
	fn   func(context.Context) error
}

// Server owns the HTTP server of one service plus the hooks that tear down
// what the service opened at startup.
type Server struct {
	http     *http.Server
	logger   *slog.Logger
	drain    time.Duration
	mu       sync.Mutex
	releases []release
	once     sync.Once
	err      error
}

// New builds a server listening on port with the timeouts every storefront
// service uses. Hooks may be registered before the handler is mounted, so a
// constructor that fails halfway can call Shutdown to release what it opened.
func New(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           http.NotFoundHandler(),
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		drain:  drainTimeout,
	}
}

// Mount sets the handler that serves requests.
func (s *Server) Mount(h http.Handler) { s.http.Handler = h }

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// OnShutdown registers fn to run after in-flight requests drained. Hooks run
// in reverse registration order, each with its own 3s budget.
func (s *Server) OnShutdown(name string, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases = append(s.releases, release{name: name, fn: fn})
}

// OnShutdownFunc is OnShutdown for closers that cannot fail.
func (s *Server) OnShutdownFunc(name string, fn func()) {
	s.OnShutdown(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", slog.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, s.Shutdown())
	}
	return s.Shutdown()
}

// Shutdown drains the HTTP server, then runs the registered hooks. Only the
// first call does any work; later calls return its result.
func (s *Server) Shutdown() error {
	s.once.Do(func() { s.err = s.shutdown() })
	return s.err
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down")

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), s.drain)
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	cancel()

	s.mu.Lock()
	releases := append([]release(nil), s.releases...)
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		r := releases[i]
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		err := r.fn(ctx)
		cancel()
		if err != nil {
			s.logger.Error("release failed", slog.String("component", r.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
	}

	s.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
