package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment overrides, e.g.
// ZTGATE_LISTEN=0.0.0.0:3000 or ZTGATE_LOG_LEVEL=debug.
const EnvPrefix = "ZTGATE_"

// envKeyOverrides maps variables whose config keys themselves contain
// underscores; the generic underscore-to-dot transform would mangle them.
var envKeyOverrides = map[string]string{
	"ZTGATE_SENTRY_DSN":            "sentry_dsn",
	"ZTGATE_ADMIN_PASSWORD_HASH":   "admin.password_hash",
	"ZTGATE_ZEROTIER_AUTH_TOKEN":   "zerotier.auth_token",
	"ZTGATE_AUTH_TOKEN_SECRET":     "auth.token_secret",
	"ZTGATE_AUTH_TOKEN_TTL":        "auth.token_ttl",
	"ZTGATE_AUTH_BAN_MAX_FAILURES": "auth.ban.max_failures",
	"ZTGATE_ACCOUNTS_POSTGRES_URL": "accounts.postgres_url",
}

// Load reads configuration in three layers: built-in defaults, the YAML
// config file at path, then ZTGATE_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func envKey(name string) string {
	if key, ok := envKeyOverrides[name]; ok {
		return key
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
}
