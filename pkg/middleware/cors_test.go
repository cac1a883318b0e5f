package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	var reached bool
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/products", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, method != http.MethodOptions, reached, "only non-OPTIONS requests reach the handler")
	return rec
}

func TestCORS_AllowOrigin(t *testing.T) {
	strict := CORSConfig{AllowedOrigins: []string{"https://shop.example"}, Environment: "production"}
	strictCreds := strict
	strictCreds.AllowCredentials = true
	open := CORSConfig{AllowedOrigins: []string{"*"}, Environment: "production"}
	dev := DefaultCORSConfig()

	tests := []struct {
		name   string
		cfg    CORSConfig
		origin string
		want   string
	}{
		{"listed origin echoed", strict, "https://shop.example", "https://shop.example"},
		{"unlisted origin refused", strict, "https://evil.example", ""},
		{"no origin, strict", strict, "", ""},
		{"wildcard without credentials", open, "https://any.example", "*"},
		{"wildcard, no origin header", open, "", "*"},
		{"development echoes with credentials", dev, "http://localhost:3000", "http://localhost:3000"},
		{"development, no origin header", dev, "", ""},
		{"listed origin with credentials", strictCreds, "https://shop.example", "https://shop.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := corsRequest(t, tt.cfg, http.MethodGet, tt.origin)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_CredentialedResponseHeaders(t *testing.T) {
	rec := corsRequest(t, DefaultCORSConfig(), http.MethodGet, "http://localhost:3000")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "X-Correlation-ID, Pagination", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, []string{"Origin"}, rec.Header().Values("Vary"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"), "methods are only sent on preflight")
}

func TestCORS_RefusedOriginGetsNoCORSHeaders(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example"}, AllowCredentials: true}
	rec := corsRequest(t, cfg, http.MethodGet, "https://evil.example")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Empty(t, rec.Header().Get("Vary"))
}

func TestCORS_Preflight(t *testing.T) {
	rec := corsRequest(t, DefaultCORSConfig(), http.MethodOptions, "http://localhost:3000")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Accept, Authorization, Content-Type, X-Correlation-ID", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PreflightDefaultsAndMaxAge(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example"}, MaxAge: 600}
	rec := corsRequest(t, cfg, http.MethodOptions, "https://shop.example")

	assert.Equal(t, "GET, POST, PUT, PATCH, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, rec.Header().Get("Access-Control-Expose-Headers"))
}
