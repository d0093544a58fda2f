// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package config reads the server settings from the environment. Command
// line flags use these values as their defaults.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ServiceName    string        `env:"SERVICE_NAME" envDefault:"vc-showcase"`
	Addr           string        `env:"ADDR" envDefault:"0.0.0.0:8080"`
	DB             string        `env:"DB" envDefault:"kvdb://testdata/showcase.db"`
	VerifierURL    string        `env:"VCS_API_URL" envDefault:"http://localhost:8085"`
	ContentDir     string        `env:"CONTENT_DIR"`
	StaticDir      string        `env:"STATIC_DIR"`
	FlowsFile      string        `env:"FLOWS_FILE"`
	OTLPAddr       string        `env:"OTLP_GRPC"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"INFO"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"1500ms"`
	StepDelay      time.Duration `env:"STEP_DELAY" envDefault:"800ms"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	SSEKeepAlive   time.Duration `env:"SSE_KEEPALIVE" envDefault:"15s"`
	// The admin area is only served when both are set.
	AdminUser     string `env:"ADMIN_USER"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("parse env: POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.StepDelay <= 0 {
		return Config{}, fmt.Errorf("parse env: STEP_DELAY must be positive, got %s", cfg.StepDelay)
	}
	if cfg.SSEKeepAlive <= 0 {
		return Config{}, fmt.Errorf("parse env: SSE_KEEPALIVE must be positive, got %s", cfg.SSEKeepAlive)
	}
	return cfg, nil
}

// AdminAccounts returns the basic auth accounts of the admin area, nil when
// it is disabled.
func (c Config) AdminAccounts() map[string]string {
	if c.AdminUser == "" || c.AdminPassword == "" {
		return nil
	}
	return map[string]string{c.AdminUser: c.AdminPassword}
}
