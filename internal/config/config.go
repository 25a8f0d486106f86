// Package config loads server settings from the environment.
//
// Values are parsed with caarlos0/env (defaults live in the struct tags) and
// checked with go-playground/validator. main.go loads .env first via godotenv.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Board  BoardConfig
}

// ServerConfig contains HTTP and storage settings.
type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"5175" validate:"required,numeric"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Env          string        `env:"APP_ENV" envDefault:"development" validate:"oneof=development production test"`
	DBPath       string        `env:"DB_PATH" envDefault:"./data/pairs.db" validate:"required"`
	ClientOrigin string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173" validate:"required"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"6h" validate:"gt=0"`
}

// AuthConfig contains JWT settings.
type AuthConfig struct {
	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev_secret_change_me" validate:"required"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14" validate:"gt=0"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"pairs_token" validate:"required"`
}

// BoardConfig contains game rules and timing.
type BoardConfig struct {
	Dimension     int           `env:"BOARD_DIMENSION" envDefault:"4" validate:"gte=2,even"`
	SymbolsFile   string        `env:"SYMBOLS_FILE"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"1s" validate:"gt=0"`
	FlipBackDelay time.Duration `env:"FLIP_BACK_DELAY" envDefault:"1s" validate:"gt=0"`
	WinDelay      time.Duration `env:"WIN_DELAY" envDefault:"1s" validate:"gt=0"`
	DailySalt     string        `env:"DAILY_SALT" envDefault:"local_dev_salt" validate:"required"`
}

// Production reports whether cookies should be marked Secure.
func (c ServerConfig) Production() bool { return c.Env == "production" }

// Addr is the listen address for http.Server.
func (c ServerConfig) Addr() string { return ":" + c.Port }

// Load parses and validates the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct-tag constraints on cfg.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("even", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 0
	}); err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
