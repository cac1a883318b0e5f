package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Config is the gateway's environment.
type Config struct {
	pkgconfig.Service

	HTTPPort int `env:"GATEWAY_HTTP_PORT" envDefault:"8080"`

	CatalogURL string `env:"CATALOG_URL" envDefault:"http://localhost:8001"`
	AccountURL string `env:"ACCOUNT_URL" envDefault:"http://localhost:8002"`
	CartURL    string `env:"CART_URL" envDefault:"http://localhost:8003"`

	ProxyDialTimeout     time.Duration `env:"PROXY_DIAL_TIMEOUT" envDefault:"5s"`
	ProxyResponseTimeout time.Duration `env:"PROXY_RESPONSE_TIMEOUT" envDefault:"30s"`
	ProxyIdleTimeout     time.Duration `env:"PROXY_IDLE_TIMEOUT" envDefault:"90s"`
	ProxyMaxIdleConns    int           `env:"PROXY_MAX_IDLE_CONNS" envDefault:"100"`

	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"200"`

	// /metrics is restricted like /debug/pprof.
	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads and validates the gateway environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
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
	for name, raw := range c.upstreamVars() {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.RateLimitRPS < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func (c *Config) upstreamVars() map[string]string {
	return map[string]string{"CATALOG_URL": c.CatalogURL, "ACCOUNT_URL": c.AccountURL, "CART_URL": c.CartURL}
}

// Upstreams returns the backend base URLs keyed by service name.
func (c *Config) Upstreams() map[string]string {
	return map[string]string{
		"catalog": c.CatalogURL,
		"account": c.AccountURL,
		"cart":    c.CartURL,
	}
}

// Tracing returns the exporter settings for the gateway service.
func (c *Config) Tracing() tracing.Config {
	return c.Service.Tracing("gateway")
}
