package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if QAFLOW_CONFIG is set
//  3. env (prefix QAFLOW_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("QAFLOW_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// QAFLOW_DATABASE_URL -> database_url, QAFLOW_REAP_INTERVAL -> reap_interval, ...
	envProvider := env.Provider("QAFLOW_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "qaflow_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("config: addr must not be empty")
	}
	if cfg.HeartbeatInterval <= 0 || cfg.LockGrace < 0 {
		return nil, errors.New("config: lock timing must be positive")
	}
	if cfg.ReapInterval <= 0 {
		return nil, errors.New("config: reap_interval must be positive")
	}
	return &cfg, nil
}
