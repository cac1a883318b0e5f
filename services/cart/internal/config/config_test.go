package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8003, cfg.HTTPPort)
	assert.Equal(t, "localhost:6379", cfg.Redis().Addr())
	assert.Equal(t, 168, cfg.CartTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.TTL())
	assert.Equal(t, "http://localhost:8001", cfg.CatalogURL)
	assert.False(t, cfg.CookieSecure)
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("CART_HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidOTELSampleRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATE", "2.0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATE must be between 0.0 and 1.0")
}

func TestLoad_CustomRedis(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.prod")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_POOL_SIZE", "32")

	cfg, err := Load()

	require.NoError(t, err)
	rc := cfg.Redis()
	assert.Equal(t, "redis.prod:6380", rc.Addr())
	assert.Equal(t, 32, rc.PoolSize)
}

func TestLoad_CustomCartTTL(t *testing.T) {
	t.Setenv("CART_TTL_HOURS", "24")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.TTL())
}

func TestLoad_NonPositiveCartTTL(t *testing.T) {
	t.Setenv("CART_TTL_HOURS", "0")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CART_TTL_HOURS")
}

func TestLoad_RelativeCatalogURL(t *testing.T) {
	t.Setenv("CATALOG_URL", "catalog:8001")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATALOG_URL")
}

func TestLoad_DefaultSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_ProductionWithSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "a-real-secret")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.CookieSecure)
}
