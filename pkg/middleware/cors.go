package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins that may call the API. "*" allows any.
	AllowedOrigins []string

	// AllowedMethods and AllowedHeaders are answered on preflight. Empty
	// means the package defaults.
	AllowedMethods []string
	AllowedHeaders []string

	// ExposedHeaders is the list of headers the browser may access. The
	// catalog exposes Pagination so browser clients can read paging metadata.
	ExposedHeaders []string

	// MaxAge is how long, in seconds, a preflight answer may be cached.
	// 0 means one hour.
	MaxAge int

	// AllowCredentials indicates whether credentials (cookies, auth headers) are
	// supported. With credentials a wildcard origin is answered by echoing the
	// request Origin, since browsers reject "*" on credentialed requests.
	AllowCredentials bool

	// Environment "development" accepts any origin.
	Environment string
}

// DefaultCORSConfig returns the development CORS configuration shared by the
// storefront services.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   defaultAllowedHeaders,
		ExposedHeaders:   []string{"X-Correlation-ID", "Pagination"},
		AllowCredentials: true,
		Environment:      "development",
	}
}

var (
	defaultAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	defaultAllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"}
)

type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{
		anyOrigin:   cfg.Environment == "development",
		origins:     make(map[string]struct{}, len(cfg.AllowedOrigins)),
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(orDefault(cfg.AllowedMethods, defaultAllowedMethods), ", "),
		headers:     strings.Join(orDefault(cfg.AllowedHeaders, defaultAllowedHeaders), ", "),
		exposed:     strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:      "3600",
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[o] = struct{}{}
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (p corsPolicy) allowOrigin(origin string) string {
	if origin == "" {
		if p.anyOrigin && !p.credentials {
			return "*"
		}
		return ""
	}
	if _, ok := p.origins[origin]; ok {
		return origin
	}
	if !p.anyOrigin {
		return ""
	}
	if p.credentials {
		return origin
	}
	return "*"
}

// CORS returns middleware that answers cross-origin requests per cfg. Every
// OPTIONS request is treated as a preflight and answered with 204.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if allowed := p.allowOrigin(r.Header.Get("Origin")); allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if allowed != "*" {
					h.Add("Vary", "Origin")
				}
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.exposed != "" {
					h.Set("Access-Control-Expose-Headers", p.exposed)
				}
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", p.methods)
			h.Set("Access-Control-Allow-Headers", p.headers)
			h.Set("Access-Control-Max-Age", p.maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
