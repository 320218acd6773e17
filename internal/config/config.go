// Package config loads craftd's runtime configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every tunable. Host and Port come from the environment and
// may then be overridden by the positional CLI arguments (ApplyCLIOverrides).
type Config struct {
	Host string `env:"CRAFTD_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"CRAFTD_PORT" envDefault:"4080"`

	DBPath string `env:"CRAFTD_DB_PATH" envDefault:"craft.db"`

	BufferSize      int           `env:"CRAFTD_BUFFER_SIZE" envDefault:"1024"`
	CommitInterval  time.Duration `env:"CRAFTD_COMMIT_INTERVAL" envDefault:"5s"`
	MaxConnections  int           `env:"CRAFTD_MAX_CONNECTIONS" envDefault:"2000"`
	OutboundQueue   int           `env:"CRAFTD_OUTBOUND_QUEUE" envDefault:"4096"`
	InboundRatePerS float64       `env:"CRAFTD_INBOUND_RATE" envDefault:"200"`
	InboundBurst    int           `env:"CRAFTD_INBOUND_BURST" envDefault:"400"`

	MetricsAddr string `env:"CRAFTD_METRICS_ADDR" envDefault:":9095"`

	NATSUrl string `env:"CRAFTD_NATS_URL" envDefault:""`

	LogLevel  string `env:"CRAFTD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CRAFTD_LOG_FORMAT" envDefault:"json"`
}

// Load reads environment variables (after optionally loading a .env file)
// into a Config and validates it. Passing a logger is optional; when nil,
// informational messages about the .env lookup are simply skipped.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Debug().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration overrides from .env")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ApplyCLIOverrides applies the "craftd [host [port]]" positional contract:
// a bare host, or host and port, override the environment-derived address.
// A malformed port argument is ignored, leaving the environment value (or
// its default) in place.
func ApplyCLIOverrides(cfg *Config, args []string) {
	if len(args) >= 1 {
		cfg.Host = args[0]
	}
	if len(args) >= 2 {
		if port, err := strconv.Atoi(args[1]); err == nil {
			cfg.Port = port
		}
	}
}

// Validate checks range and consistency constraints that env tags alone
// cannot express.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("CRAFTD_PORT must be 1-65535, got %d", c.Port)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("CRAFTD_BUFFER_SIZE must be > 0, got %d", c.BufferSize)
	}
	if c.CommitInterval <= 0 {
		return fmt.Errorf("CRAFTD_COMMIT_INTERVAL must be > 0, got %s", c.CommitInterval)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("CRAFTD_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.OutboundQueue < 1 {
		return fmt.Errorf("CRAFTD_OUTBOUND_QUEUE must be > 0, got %d", c.OutboundQueue)
	}
	if c.InboundRatePerS <= 0 {
		return fmt.Errorf("CRAFTD_INBOUND_RATE must be > 0, got %f", c.InboundRatePerS)
	}
	return nil
}
