package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime settings for the API service. Every field is
// sourced from the environment; defaults suit local development against a
// Redis on localhost.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	RedisURL string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	DataDir  string        `env:"DATA_DIR" envDefault:"./data"`
	TTL      time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// Campaign clock tuning. TotalDuration is the in-fiction countdown a new
	// session starts with; SeverityBaseRate is percent severity per simulated
	// second before modifiers.
	TotalDuration    time.Duration `env:"CAMPAIGN_DURATION" envDefault:"72h"`
	InitialSeverity  float64       `env:"INITIAL_SEVERITY" envDefault:"15"`
	SeverityBaseRate float64       `env:"SEVERITY_BASE_RATE" envDefault:"0.00025"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
