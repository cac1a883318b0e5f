package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
)

// BuyerCookieName is the cookie carrying an anonymous buyer's id.
const BuyerCookieName = "buyerId"

// defaultBuyerCookieMaxAge is how long an issued buyer cookie lives.
const defaultBuyerCookieMaxAge = 30 * 24 * time.Hour

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const buyerIDKey contextKey = "buyer_id"

// BuyerCookieConfig controls the buyer cookie issued to anonymous buyers.
type BuyerCookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

// cookie builds the buyer cookie for id. SameSite=None is only accepted by
// browsers on secure cookies, so plain-HTTP deployments fall back to Lax.
func (c BuyerCookieConfig) cookie(id string) *http.Cookie {
	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = defaultBuyerCookieMaxAge
	}
	sameSite := http.SameSiteLaxMode
	if c.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     BuyerCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
}

// ResolveBuyer stores the buyer id in the request context. A bearer token
// subject (set by middleware.OptionalAuth) wins over the buyer cookie.
// Requests carrying neither continue without a buyer.
func ResolveBuyer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if sub := middleware.SubjectFromContext(ctx); sub != "" {
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, buyerIDKey, sub)))
			return
		}

		if c, err := r.Cookie(BuyerCookieName); err == nil && c.Value != "" {
			next.ServeHTTP(w, r.WithContext(withBuyer(ctx, c.Value)))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withBuyer records id for the handlers and for request-scoped logging.
func withBuyer(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, buyerIDKey, id)
	ctx = logger.WithBuyerID(ctx, id)
	return logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("buyer_id", id)))
}

// buyerFromContext returns the buyer id resolved by ResolveBuyer.
func buyerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(buyerIDKey).(string)
	return id
}

// ContentTypeJSON rejects request bodies that are not JSON and marks every
// response as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// newBuyerID issues a fresh anonymous buyer id.
func newBuyerID() string {
	return uuid.New().String()
}
