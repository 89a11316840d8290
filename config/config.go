/*
Package config loads service configuration.

PURPOSE:
  Configuration comes from an optional YAML file with environment
  variable overrides on top, so a container deployment can tune the
  service without shipping a file. Defaults cover local development.

PRECEDENCE (highest wins):
  1. Environment variables
  2. YAML file (-config flag)
  3. Built-in defaults

SEE ALSO:
  - cmd/server: The composition root that consumes this
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/pos-core/event"
)

// Config is the full service configuration.
type Config struct {
	Server      Server             `yaml:"server"`
	Storage     Storage            `yaml:"storage"`
	Breaker     Breaker            `yaml:"breaker"`
	Terminal    Terminal           `yaml:"terminal"`
	Republisher Republisher        `yaml:"republisher"`
	Auth        Auth               `yaml:"auth"`
	Subscribers []event.Subscriber `yaml:"subscribers"`
}

type Server struct {
	Port               int `yaml:"port"`
	HTTPTimeoutSeconds int `yaml:"httpTimeoutSeconds"`
}

type Storage struct {
	SQLitePath     string `yaml:"sqlitePath"`
	LevelDBPath    string `yaml:"leveldbPath"`
	CartTTLSeconds int    `yaml:"cartTtlSeconds"`
}

type Breaker struct {
	Threshold       int `yaml:"threshold"`
	CooldownSeconds int `yaml:"cooldownSeconds"`
}

type Terminal struct {
	CacheTTLSeconds int `yaml:"cacheTtlSeconds"`
}

type Republisher struct {
	Enabled              bool `yaml:"enabled"`
	CheckIntervalSeconds int  `yaml:"checkIntervalSeconds"`
	GracePeriodSeconds   int  `yaml:"gracePeriodSeconds"`
	WindowSeconds        int  `yaml:"windowSeconds"`
}

type Auth struct {
	// JWTSecret signs and verifies admin bearer tokens.
	JWTSecret string `yaml:"jwtSecret"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Server: Server{
			Port:               8080,
			HTTPTimeoutSeconds: 30,
		},
		Storage: Storage{
			SQLitePath:     "pos.db",
			LevelDBPath:    "pos-cart.ldb",
			CartTTLSeconds: 36000,
		},
		Breaker: Breaker{
			Threshold:       3,
			CooldownSeconds: 60,
		},
		Terminal: Terminal{
			CacheTTLSeconds: 300,
		},
		Republisher: Republisher{
			Enabled:              true,
			CheckIntervalSeconds: 300,
			GracePeriodSeconds:   900,
			WindowSeconds:        86400,
		},
		Auth: Auth{
			JWTSecret: "dev-secret-change-me",
		},
	}
}

// Load reads the YAML file (if path is non-empty) over the defaults and
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envInt("PORT", &cfg.Server.Port)
	envInt("HTTP_TIMEOUT", &cfg.Server.HTTPTimeoutSeconds)
	envStr("SQLITE_PATH", &cfg.Storage.SQLitePath)
	envStr("LEVELDB_PATH", &cfg.Storage.LevelDBPath)
	envInt("CART_TTL_SECONDS", &cfg.Storage.CartTTLSeconds)
	envInt("CIRCUIT_BREAKER_THRESHOLD", &cfg.Breaker.Threshold)
	envInt("CIRCUIT_BREAKER_TIMEOUT", &cfg.Breaker.CooldownSeconds)
	envInt("TERMINAL_CACHE_TTL_SECONDS", &cfg.Terminal.CacheTTLSeconds)
	envInt("UNDELIVERED_CHECK_INTERVAL", &cfg.Republisher.CheckIntervalSeconds)
	envInt("UNDELIVERED_CHECK_GRACE", &cfg.Republisher.GracePeriodSeconds)
	envInt("UNDELIVERED_CHECK_PERIOD", &cfg.Republisher.WindowSeconds)
	// Canonical republisher keys carry their unit in the name and win
	// over the seconds-based variants above when both are set.
	envScaledInt("UNDELIVERED_CHECK_INTERVAL_IN_MINUTES", &cfg.Republisher.CheckIntervalSeconds, 60)
	envScaledInt("UNDELIVERED_CHECK_FAILED_PERIOD_IN_MINUTES", &cfg.Republisher.GracePeriodSeconds, 60)
	envScaledInt("UNDELIVERED_CHECK_PERIOD_IN_HOURS", &cfg.Republisher.WindowSeconds, 3600)
	envStr("JWT_SECRET", &cfg.Auth.JWTSecret)
}

func envStr(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envScaledInt(name string, dst *int, factor int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n * factor
		}
	}
}

// Convenience duration accessors.

func (c Config) HTTPTimeout() time.Duration { return secs(c.Server.HTTPTimeoutSeconds) }
func (c Config) CartTTL() time.Duration     { return secs(c.Storage.CartTTLSeconds) }
func (c Config) BreakerCooldown() time.Duration {
	return secs(c.Breaker.CooldownSeconds)
}
func (c Config) TerminalCacheTTL() time.Duration { return secs(c.Terminal.CacheTTLSeconds) }
func (c Config) RepublishInterval() time.Duration {
	return secs(c.Republisher.CheckIntervalSeconds)
}
func (c Config) RepublishGrace() time.Duration  { return secs(c.Republisher.GracePeriodSeconds) }
func (c Config) RepublishWindow() time.Duration { return secs(c.Republisher.WindowSeconds) }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }
