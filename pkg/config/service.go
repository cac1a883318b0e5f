package config

import (
	"errors"
	"fmt"

	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Service holds the settings every storefront service reads. Embed it in a
// service Config; Load fills embedded sections too.
type Service struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Development reports whether the service runs with development defaults.
func (s Service) Development() bool { return s.Environment == "development" }

// Validate checks the shared settings.
func (s Service) Validate() error {
	if s.OTELSampleRate < 0 || s.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %g", s.OTELSampleRate)
	}
	return nil
}

// Tracing returns the exporter settings for the named service.
func (s Service) Tracing(name string) tracing.Config {
	tc := tracing.DefaultConfig(name)
	tc.Environment = s.Environment
	tc.OTLPEndpoint = s.OTELEndpoint
	tc.SampleRate = s.OTELSampleRate
	tc.Enabled = s.OTELEnabled
	return tc
}

// Postgres is the server half of a connection: which database a service
// opens stays in the service's own Config.
type Postgres struct {
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
}

// Validate requires a host and a user.
func (p Postgres) Validate() error {
	var errs []error
	if p.PostgresHost == "" {
		errs = append(errs, errors.New("POSTGRES_HOST is required"))
	}
	if p.PostgresUser == "" {
		errs = append(errs, errors.New("POSTGRES_USER is required"))
	}
	return errors.Join(errs...)
}

// Pool returns pool settings for dbName on this server, starting from the
// package defaults.
func (p Postgres) Pool(dbName string) database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = p.PostgresHost
	pg.Port = p.PostgresPort
	pg.User = p.PostgresUser
	pg.Password = p.PostgresPass
	pg.SSLMode = p.PostgresSSL
	pg.DBName = dbName
	return pg
}

// ValidatePort checks an HTTP listen port.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", port)
	}
	return nil
}
