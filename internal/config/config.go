// Package config loads steerctl settings from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/roach88/tablefsm/internal/steering"
)

var (
	// ErrParsingConfig is returned when the environment cannot be parsed.
	ErrParsingConfig = errors.New("failed to parse config")

	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds the steering runtime settings.
type Config struct {
	DebugMode     bool   `env:"STEER_DEBUG_MODE" envDefault:"true"`
	ControlMode   string `env:"STEER_CONTROL_MODE" envDefault:"angle"`
	GatewayState  uint8  `env:"STEER_GATEWAY_STATE" envDefault:"0"`
	MaxChainSteps int    `env:"STEER_MAX_CHAIN_STEPS" envDefault:"8"`
	DBPath        string `env:"STEER_DB"`
	LogLevel      string `env:"STEER_LOG_LEVEL" envDefault:"info"`
}

// Load reads the given .env files (".env" when none are named), then parses
// the process environment. Missing .env files are not an error; variables
// already set in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := steering.ParseControlMode(c.ControlMode); err != nil {
		return fmt.Errorf("%w: STEER_CONTROL_MODE: %v", ErrInvalidConfig, err)
	}
	if c.MaxChainSteps < 0 {
		return fmt.Errorf("%w: STEER_MAX_CHAIN_STEPS must be >= 0, got %d", ErrInvalidConfig, c.MaxChainSteps)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: STEER_LOG_LEVEL: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Mode returns the parsed control mode. Call after Validate.
func (c Config) Mode() steering.ControlMode {
	m, _ := steering.ParseControlMode(c.ControlMode)
	return m
}

// SlogLevel returns the configured log level. Call after Validate.
func (c Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

// SteeringOptions converts the settings to steering options.
func (c Config) SteeringOptions() []steering.Option {
	return []steering.Option{
		steering.WithDebugMode(c.DebugMode),
		steering.WithControlMode(c.Mode()),
		steering.WithGatewayState(c.GatewayState),
		steering.WithMaxSteps(c.MaxChainSteps),
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
}
