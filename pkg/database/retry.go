package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// retryPolicy retries startup work (pool creation, migrations) while the
// database container is still coming up.
type retryPolicy struct {
	attempts int
	base     time.Duration
	jitter   float64
}

// startupRetry waits 1s, 2s between three attempts, each ±25%.
var startupRetry = retryPolicy{attempts: 3, base: time.Second, jitter: 0.25}

// backoff returns the wait after the given zero-based failed attempt.
func (p retryPolicy) backoff(attempt int) time.Duration {
	d := p.base << max(attempt, 0)
	spread := float64(d) * p.jitter * (2*rand.Float64() - 1) // #nosec G404 -- jitter only
	return d + time.Duration(spread)
}

// do runs fn until it succeeds, retryable rejects its error, or the attempts
// run out. Only an exhausted retry wraps the error; a rejected one is
// returned as is.
func (p retryPolicy) do(ctx context.Context, logger *slog.Logger, what string, retryable func(error) bool, fn func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		switch {
		case err == nil:
			return nil
		case !retryable(err):
			return err
		case attempt >= p.attempts:
			return fmt.Errorf("%s after %d attempts: %w", what, attempt, err)
		}

		wait := p.backoff(attempt - 1)
		logger.WarnContext(ctx, what+" failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.attempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-timer.C:
		}
	}
}

func always(error) bool { return true }

// transient reports whether err is a lost or refused connection rather than
// a statement the server rejected. Postgres class 08 (connection exception)
// and 57P03 (cannot connect now) count as transient.
func transient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P03"
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	return errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		pgconn.SafeToRetry(err) ||
		pgconn.Timeout(err)
}
