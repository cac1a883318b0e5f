package main

import (
	"fmt"

	"github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/pagination"
)

// Config holds the REPL settings. API settings are read with the
// STOREFRONT_ prefix; LOG_LEVEL is shared with the services.
type Config struct {
	APIURL   string `env:"API_URL" envDefault:"http://localhost:8080/api/"`
	Token    string `env:"TOKEN"`
	PageSize int    `env:"PAGE_SIZE" envDefault:"6"`

	LogLevel string
}

type logConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"warn"`
}

func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.LoadWithPrefix(cfg, "STOREFRONT_"); err != nil {
		return nil, err
	}
	var lc logConfig
	if err := config.Load(&lc); err != nil {
		return nil, err
	}
	cfg.LogLevel = lc.Level

	if cfg.PageSize < 1 || cfg.PageSize > pagination.MaxPageSize {
		return nil, fmt.Errorf("STOREFRONT_PAGE_SIZE must be between 1 and %d, got %d", pagination.MaxPageSize, cfg.PageSize)
	}
	return cfg, nil
}
