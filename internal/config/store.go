package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Store publishes the current Config as an atomically swapped immutable
// snapshot. Readers always observe a fully formed Config; updates replace
// the whole pointer and never mutate a published snapshot in place.
type Store struct {
	path    string
	current atomic.Pointer[Config]
}

func NewStore(path string, cfg *Config) *Store {
	s := &Store{path: path}
	s.current.Store(cfg)
	return s
}

func (s *Store) Path() string {
	return s.path
}

// Snapshot returns the current configuration. The returned value must be
// treated as read-only.
func (s *Store) Snapshot() *Config {
	return s.current.Load()
}

// Replace publishes cfg without touching the file, e.g. after the watcher
// re-read an externally edited config.
func (s *Store) Replace(cfg *Config) {
	s.current.Store(cfg)
}

// Save persists cfg to the config file and then publishes it. The file is
// written before the swap so readers never see state that would be lost on
// restart.
func (s *Store) Save(cfg *Config) error {
	encoded, err := encode(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(s.path, encoded, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	s.current.Store(cfg)
	return nil
}

// encode renders the persisted YAML form. Durations are written as strings
// ("24h0m0s") so the file stays hand-editable and round-trips through Load.
func encode(cfg *Config) ([]byte, error) {
	doc := map[string]any{
		"listen": cfg.Listen,
		"admin": map[string]any{
			"username":      cfg.Admin.Username,
			"password_hash": cfg.Admin.PasswordHash,
		},
		"zerotier": map[string]any{
			"address":    cfg.ZeroTier.Address,
			"auth_token": cfg.ZeroTier.AuthToken,
		},
		"auth": map[string]any{
			"token_secret": cfg.Auth.TokenSecret,
			"token_ttl":    cfg.Auth.TokenTTL.String(),
			"ban": map[string]any{
				"max_failures": cfg.Auth.Ban.MaxFailures,
				"window":       cfg.Auth.Ban.Window.String(),
				"duration":     cfg.Auth.Ban.Duration.String(),
			},
		},
		"accounts": map[string]any{
			"backend":      cfg.Accounts.Backend,
			"postgres_url": cfg.Accounts.PostgresURL,
		},
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
	}
	if cfg.SentryDSN != "" {
		doc["sentry_dsn"] = cfg.SentryDSN
	}

	return yaml.Marshal(doc)
}
