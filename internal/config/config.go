// SPDX-License-Identifier: Apache-2.0

// Package config loads runtime settings from an optional YAML file and
// the environment. Environment variables use the CONCIERGE_ prefix and
// override file values; a .env file is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CONCIERGE_"

type Config struct {
	Env         string `koanf:"env"`
	HTTPAddr    string `koanf:"http_addr"`
	DatabaseURL string `koanf:"database_url"`
	SQLitePath  string `koanf:"sqlite_path"`

	DocumentsDir string `koanf:"documents_dir"`

	WebhookURL    string `koanf:"webhook_url"`
	WebhookSecret string `koanf:"webhook_secret"`

	GenerationTimeout time.Duration `koanf:"generation_timeout"`
	DispatchTimeout   time.Duration `koanf:"dispatch_timeout"`

	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	AutoMigrate bool `koanf:"auto_migrate"`
}

func defaults() Config {
	return Config{
		Env:                "dev",
		HTTPAddr:           ":8080",
		SQLitePath:         "data/interactions.db",
		DocumentsDir:       "documents",
		GenerationTimeout:  20 * time.Second,
		DispatchTimeout:    30 * time.Second,
		RateLimitPerMinute: 120,
		AutoMigrate:        true,
	}
}

// Load reads configuration in ascending precedence: defaults, the YAML
// file named by CONCIERGE_CONFIG (if any), then CONCIERGE_* environment
// variables. A .env file in the working directory is applied to the
// process environment first, without overriding variables already set.
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := strings.TrimSpace(os.Getenv(envPrefix + "CONFIG")); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	// CONCIERGE_CONFIG is meta, not a setting.
	k.Delete("config")

	out := defaults()
	if err := k.Unmarshal("", &out); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := out.validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("http_addr must not be empty")
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("generation_timeout must be positive, got %s", c.GenerationTimeout)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("dispatch_timeout must be positive, got %s", c.DispatchTimeout)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute must not be negative, got %d", c.RateLimitPerMinute)
	}
	if c.DatabaseURL == "" && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("either database_url or sqlite_path must be set")
	}
	return nil
}

// UsesPostgres reports whether history should live in Postgres instead
// of the local SQLite file.
func (c Config) UsesPostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}
