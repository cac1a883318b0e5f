package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/utafrali/storefront/pkg/httputil"
)

// idleBucketTTL is how long a client's bucket survives without traffic.
const idleBucketTTL = 3 * time.Minute

var rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "storefront",
	Subsystem: "gateway",
	Name:      "rate_limited_total",
	Help:      "Requests answered 429 by the per-client rate limiter.",
})

type bucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// buckets holds one token bucket per client address.
type buckets struct {
	mu    sync.Mutex
	byKey map[string]*bucket
	every rate.Limit
	burst int
	idle  time.Duration
	clock func() time.Time
}

func newBuckets(rps, burst int, idle time.Duration) *buckets {
	return &buckets{
		byKey: make(map[string]*bucket),
		every: rate.Limit(rps),
		burst: burst,
		idle:  idle,
		clock: time.Now,
	}
}

// allow spends one token from key's bucket, creating the bucket on first use.
func (b *buckets) allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk := b.byKey[key]
	if bk == nil {
		bk = &bucket{tokens: rate.NewLimiter(b.every, b.burst)}
		b.byKey[key] = bk
	}
	bk.seen = b.clock()
	return bk.tokens.AllowN(bk.seen, 1)
}

// sweep drops buckets idle for longer than the TTL and reports how many are
// left.
func (b *buckets) sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.clock().Add(-b.idle)
	for key, bk := range b.byKey {
		if bk.seen.Before(cutoff) {
			delete(b.byKey, key)
		}
	}
	return len(b.byKey)
}

func (b *buckets) evictUntil(ctx context.Context) {
	t := time.NewTicker(b.idle)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			b.sweep()
		case <-ctx.Done():
			return
		}
	}
}

// RateLimit answers 429 once a client exceeds rps requests per second with
// the given burst. Idle client buckets are evicted until ctx is done.
func RateLimit(ctx context.Context, rps, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	b := newBuckets(rps, burst, idleBucketTTL)
	go b.evictUntil(ctx)
	return limitWith(b, logger)
}

func limitWith(b *buckets, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			if b.allow(client) {
				next.ServeHTTP(w, r)
				return
			}
			rejectedTotal.Inc()
			logger.WarnContext(r.Context(), "rate limited",
				slog.String("client", client),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
			})
		})
	}
}

// clientIP picks the first parseable X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address.
func clientIP(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
			return addr.Unmap().String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
