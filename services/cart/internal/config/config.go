package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

const defaultJWTSecret = "storefront-dev-secret-change-me"

// Config is the cart service's environment.
type Config struct {
	pkgconfig.Service

	HTTPPort int `env:"CART_HTTP_PORT" envDefault:"8003"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass     string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Hours a cart survives without being written. A week by default.
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"168"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Products are snapshotted into cart lines from here.
	CatalogURL string `env:"CATALOG_URL" envDefault:"http://localhost:8001"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"storefront-dev-secret-change-me"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:""`

	// Secure buyer cookies are only replayed over https.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"false"`
}

// Load reads and validates the cart environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := pkgconfig.ValidatePort(c.HTTPPort); err != nil {
		return err
	}
	if err := c.Service.Validate(); err != nil {
		return err
	}
	if c.CartTTL < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTL)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if u, err := url.Parse(c.CatalogURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CATALOG_URL must be an absolute URL, got %q", c.CatalogURL)
	}
	if !c.Development() && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
	}
	return nil
}

// TTL returns the cart expiry.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// Redis returns the client settings for the cart store.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
	}
}

// Tracing returns the exporter settings for the cart service.
func (c *Config) Tracing() tracing.Config {
	return c.Service.Tracing("cart")
}
