package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FLEETREADY_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FLEETREADY_CONFIG is set
//  3. env (prefix FLEETREADY_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// FLEETREADY_QUEUE_SIZE -> queue_size (flat keys, underscores preserved)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		if s == "config" {
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres":
		return fmt.Errorf("%w: unsupported database_driver %q", ErrInvalidConfig, c.DatabaseDriver)
	case strings.TrimSpace(c.DatabaseDSN) == "":
		return fmt.Errorf("%w: database_dsn must not be empty", ErrInvalidConfig)
	case c.DedupeBackend != "memory" && c.DedupeBackend != "redis":
		return fmt.Errorf("%w: unsupported dedupe_backend %q", ErrInvalidConfig, c.DedupeBackend)
	case c.DedupeBackend == "redis" && strings.TrimSpace(c.RedisAddr) == "":
		return fmt.Errorf("%w: redis_addr is required for the redis dedupe backend", ErrInvalidConfig)
	case c.MergeToleranceHours < 0:
		return fmt.Errorf("%w: merge_tolerance_hours must not be negative", ErrInvalidConfig)
	case c.ScoreWindowDays <= 0:
		return fmt.Errorf("%w: score_window_days must be positive", ErrInvalidConfig)
	case c.MetricsRefreshSeconds <= 0:
		return fmt.Errorf("%w: metrics_refresh_seconds must be positive", ErrInvalidConfig)
	}
	for _, v := range c.Vendors {
		if v.Name == "" || v.URL == "" {
			return fmt.Errorf("%w: vendor entries need a name and url", ErrInvalidConfig)
		}
		if v.AuthScheme != "" && v.AuthScheme != "api_key" && v.AuthScheme != "bearer" {
			return fmt.Errorf("%w: vendor %s: unsupported auth_scheme %q", ErrInvalidConfig, v.Name, v.AuthScheme)
		}
	}
	return nil
}
