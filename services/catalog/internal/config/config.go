package config

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Config is the catalog service's environment. CORS always exposes the
// Pagination header.
type Config struct {
	pkgconfig.Service
	pkgconfig.Postgres

	HTTPPort int    `env:"CATALOG_HTTP_PORT" envDefault:"8001"`
	DBName   string `env:"CATALOG_DB_NAME" envDefault:"catalog"`

	DBMaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns      int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	DBConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryWarnAt time.Duration `env:"LOG_SLOW_QUERY" envDefault:"500ms"`
}

// Load reads and validates the catalog environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
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
	if err := errors.Join(c.Service.Validate(), c.Postgres.Validate()); err != nil {
		return err
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SlowQueryWarnAt < 0 {
		return fmt.Errorf("LOG_SLOW_QUERY must not be negative, got %s", c.SlowQueryWarnAt)
	}
	return nil
}

// Pool is the catalog database on the shared Postgres server.
func (c *Config) Pool() database.PostgresConfig {
	pg := c.Postgres.Pool(c.DBName)
	pg.MaxConns = c.DBMaxConns
	pg.MinConns = c.DBMinConns
	pg.MaxConnLifetime = c.DBConnLifetime
	pg.MaxConnIdleTime = c.DBConnIdleTime
	return pg
}

// Tracing returns the exporter settings for the catalog service.
func (c *Config) Tracing() tracing.Config {
	return c.Service.Tracing("catalog")
}
