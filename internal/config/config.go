package config

import (
	"fmt"
	"time"
)

// Config is the full gateway configuration. A loaded Config is treated as
// immutable: mutations clone the struct and publish the copy through Store.
type Config struct {
	// Listen is the host:port the gateway binds to.
	Listen string `koanf:"listen"`

	// SentryDSN enables error reporting when non-empty.
	SentryDSN string `koanf:"sentry_dsn"`

	Admin    Admin    `koanf:"admin"`
	ZeroTier ZeroTier `koanf:"zerotier"`
	Auth     Auth     `koanf:"auth"`
	Accounts Accounts `koanf:"accounts"`
	Log      Log      `koanf:"log"`
}

// Admin is the single administrative account when the file backend is
// active. The password is stored as a bcrypt hash, never in plaintext.
type Admin struct {
	Username     string `koanf:"username"`
	PasswordHash string `koanf:"password_hash"`
}

// ZeroTier describes the upstream controller API.
type ZeroTier struct {
	Address   string `koanf:"address"`
	AuthToken string `koanf:"auth_token"`
}

type Auth struct {
	// TokenSecret signs bearer tokens. Generated and persisted on first
	// start when empty.
	TokenSecret string        `koanf:"token_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	Ban         Ban           `koanf:"ban"`
}

// Ban tunes the login brute-force guard.
type Ban struct {
	MaxFailures int           `koanf:"max_failures"`
	Window      time.Duration `koanf:"window"`
	Duration    time.Duration `koanf:"duration"`
}

// Accounts selects where the admin account lives: "file" keeps it in this
// config file, "postgres" in a single-row table.
type Accounts struct {
	Backend     string `koanf:"backend"`
	PostgresURL string `koanf:"postgres_url"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1:3000",
		Auth: Auth{
			TokenTTL: 7 * 24 * time.Hour,
			Ban: Ban{
				MaxFailures: 5,
				Window:      time.Hour,
				Duration:    24 * time.Hour,
			},
		},
		Accounts: Accounts{
			Backend: "file",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.ZeroTier.Address == "" {
		return fmt.Errorf("zerotier.address is required")
	}
	switch c.Accounts.Backend {
	case "file":
	case "postgres":
		if c.Accounts.PostgresURL == "" {
			return fmt.Errorf("accounts.postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown accounts.backend %q", c.Accounts.Backend)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}

// Clone returns a deep copy; Config holds value types only.
func (c *Config) Clone() *Config {
	dup := *c
	return &dup
}
