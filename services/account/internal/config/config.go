package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

const defaultJWTSecret = "storefront-dev-secret-change-me"

// Config is the account service's environment.
type Config struct {
	pkgconfig.Service
	pkgconfig.Postgres

	HTTPPort   int    `env:"ACCOUNT_HTTP_PORT" envDefault:"8002"`
	DBName     string `env:"ACCOUNT_DB_NAME" envDefault:"accounts"`
	DBMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Secret and issuer must match the cart service, which validates the
	// tokens minted here.
	JWTSecret    string        `env:"JWT_SECRET" envDefault:"storefront-dev-secret-change-me"`
	JWTIssuer    string        `env:"JWT_ISSUER" envDefault:""`
	JWTAccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	BcryptCost   int           `env:"BCRYPT_COST" envDefault:"12"`
}

// Load reads and validates the account environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load account config: %w", err)
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
	switch {
	case c.DBMinConns > c.DBMaxConns:
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	case c.JWTAccessTTL <= 0:
		return fmt.Errorf("JWT_ACCESS_TTL must be positive, got %s", c.JWTAccessTTL)
	case c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost:
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	case !c.Development() && c.JWTSecret == defaultJWTSecret:
		return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
	}
	return nil
}

// Pool is the account database on the shared Postgres server.
func (c *Config) Pool() database.PostgresConfig {
	pg := c.Postgres.Pool(c.DBName)
	pg.MaxConns = c.DBMaxConns
	pg.MinConns = c.DBMinConns
	return pg
}

// Tracing returns the exporter settings for the account service.
func (c *Config) Tracing() tracing.Config {
	return c.Service.Tracing("account")
}
