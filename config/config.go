// Package config defines process configuration and its loading rules.
package config

import "time"

// Config carries every tunable the service reads at startup. The lock timing
// knobs exist in one place so the lock manager and the reaper can never
// disagree about when a lock is stale.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `koanf:"database_url"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// TokenSecret verifies the HS256 bearer tokens issued by the identity
	// provider in front of this service.
	TokenSecret string `koanf:"token_secret"`

	// HeartbeatInterval is how often an active evaluation session is expected
	// to refresh its lock.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// LockGrace is the slack added on top of HeartbeatInterval before a lock
	// counts as stale.
	LockGrace time.Duration `koanf:"lock_grace"`

	// ReapInterval is how often the stale-lock reaper sweeps.
	ReapInterval time.Duration `koanf:"reap_interval"`

	// CacheTTL bounds the read-through listing cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// DefaultRole is assigned when an authenticated actor has no directory row.
	DefaultRole string `koanf:"default_role"`
}

// LockTimeout is the age past which a lock is considered abandoned.
func (c *Config) LockTimeout() time.Duration {
	return c.HeartbeatInterval + c.LockGrace
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:              ":8000",
		LogLevel:          "info",
		HeartbeatInterval: 5 * time.Minute,
		LockGrace:         1 * time.Minute,
		ReapInterval:      1 * time.Minute,
		CacheTTL:          5 * time.Minute,
		DefaultRole:       "qa_analyst",
	}
}
