package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// StdinPath selects standard input as the log file
const StdinPath = "-"

// Config is the timer service configuration, read from the environment
type Config struct {
	Port       string   `env:"TIMERS_PORT"        envDefault:"8082"`
	ActionSets []string `env:"TIMERS_ACTION_SETS" envDefault:"damage" envSeparator:","`
	Debug      bool     `env:"TIMERS_DEBUG"`

	LogFile   string `env:"TIMERS_LOG_FILE"`
	LogFollow bool   `env:"TIMERS_LOG_FOLLOW"`

	CatalogFile        string `env:"TIMERS_CATALOG_FILE"`
	CatalogDatabaseURL string `env:"TIMERS_CATALOG_DATABASE_URL"`

	NATS NATSConfig

	IconAPIRoot string        `env:"TIMERS_ICON_API_ROOT" envDefault:"https://xivapi.com"`
	IconRate    time.Duration `env:"TIMERS_ICON_RATE"     envDefault:"125ms"`

	TimeResolution     time.Duration `env:"TIMERS_TIME_RESOLUTION"      envDefault:"50ms"`
	HideAfterCooldowns float64       `env:"TIMERS_HIDE_AFTER_COOLDOWNS" envDefault:"2"`
}

// NATSConfig selects the JetStream log source. An empty URL disables it.
type NATSConfig struct {
	URL      string `env:"NATS_URL"`
	Stream   string `env:"TIMERS_NATS_STREAM"   envDefault:"COMBAT_LOG"`
	Subject  string `env:"TIMERS_NATS_SUBJECT"  envDefault:"combatlog.lines.>"`
	Consumer string `env:"TIMERS_NATS_CONSUMER" envDefault:"timersd"`
}

var (
	ErrNoActionSets      = errors.New("at least one action set is required")
	ErrInvalidResolution = errors.New("time resolution must be positive")
	ErrInvalidHideFactor = errors.New("hide-after-cooldowns must be at least 1")
)

// Load reads a .env file if present, then parses and validates the environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	return FromEnv()
}

// FromEnv parses and validates the process environment
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	sets := 0
	for _, s := range c.ActionSets {
		if s != "" {
			sets++
		}
	}
	if sets == 0 {
		return ErrNoActionSets
	}
	if c.TimeResolution <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidResolution, c.TimeResolution)
	}
	if c.HideAfterCooldowns < 1 {
		return fmt.Errorf("%w: %g", ErrInvalidHideFactor, c.HideAfterCooldowns)
	}
	return nil
}

// ReadsStdin reports whether the log file source reads standard input
func (c Config) ReadsStdin() bool {
	return c.LogFile == StdinPath
}
