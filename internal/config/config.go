// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the server configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// DatabaseURL selects postgres; empty keeps everything in memory.
	DatabaseURL string `env:"DATABASE_URL"`

	// ValkeyAddr enables cross-instance fan-out and the shared stats cache.
	ValkeyAddr          string `env:"VALKEY_ADDR"`
	ValkeyPassword      string `env:"VALKEY_PASSWORD"`
	ValkeyChannelPrefix string `env:"VALKEY_CHANNEL_PREFIX" envDefault:"chatchat:"`

	JWTSecret  string `env:"JWT_SECRET,required,notEmpty"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://127.0.0.1:5173"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	InviteMaxAttempts int           `env:"INVITE_MAX_ATTEMPTS" envDefault:"3"`
	StatsCacheTTL     time.Duration `env:"STATS_CACHE_TTL" envDefault:"5m"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional
	return parse(env.Options{})
}

// FromMap parses cfg from environ only.
func FromMap(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", cfg.LogFormat)
	}
	if cfg.InviteMaxAttempts < 1 {
		return Config{}, fmt.Errorf("invalid INVITE_MAX_ATTEMPTS %d: must be at least 1", cfg.InviteMaxAttempts)
	}
	return cfg, nil
}
