package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const minimalYAML = `
zerotier:
  address: http://127.0.0.1:9993
  auth_token: zt-token
admin:
  username: admin
  password_hash: $2a$10$abcdefghijklmnopqrstuv
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:3000", cfg.Listen)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.Auth.Ban.MaxFailures)
	assert.Equal(t, time.Hour, cfg.Auth.Ban.Window)
	assert.Equal(t, 24*time.Hour, cfg.Auth.Ban.Duration)
	assert.Equal(t, "file", cfg.Accounts.Backend)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, "http://127.0.0.1:9993", cfg.ZeroTier.Address)
	assert.Equal(t, "zt-token", cfg.ZeroTier.AuthToken)
	assert.Equal(t, "admin", cfg.Admin.Username)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, minimalYAML+`
listen: 0.0.0.0:8080
auth:
  token_ttl: 30m
  ban:
    max_failures: 3
    window: 10m
    duration: 2h
log:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Listen)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Auth.Ban.MaxFailures)
	assert.Equal(t, 10*time.Minute, cfg.Auth.Ban.Window)
	assert.Equal(t, 2*time.Hour, cfg.Auth.Ban.Duration)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, minimalYAML+"listen: 0.0.0.0:8080\n")

	t.Setenv("ZTGATE_LISTEN", "127.0.0.1:9999")
	t.Setenv("ZTGATE_ZEROTIER_AUTH_TOKEN", "from-env")
	t.Setenv("ZTGATE_AUTH_TOKEN_TTL", "45m")
	t.Setenv("ZTGATE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
	assert.Equal(t, "from-env", cfg.ZeroTier.AuthToken)
	assert.Equal(t, 45*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing zerotier address", "listen: 127.0.0.1:3000\n"},
		{"unknown backend", minimalYAML + "accounts:\n  backend: redis\n"},
		{"postgres without url", minimalYAML + "accounts:\n  backend: postgres\n"},
		{"zero token ttl", minimalYAML + "auth:\n  token_ttl: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	store := NewStore(path, defaultConfig())

	cfg := defaultConfig()
	cfg.ZeroTier = ZeroTier{Address: "http://127.0.0.1:9993", AuthToken: "zt-token"}
	cfg.Admin = Admin{Username: "admin", PasswordHash: "$2a$10$abcdefghijklmnopqrstuv"}
	cfg.Auth.TokenSecret = "deadbeef"
	cfg.Auth.TokenTTL = 36 * time.Hour

	require.NoError(t, store.Save(cfg))
	assert.Same(t, cfg, store.Snapshot())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestSaveOmitsEmptySentryDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	store := NewStore(path, nil)

	cfg := defaultConfig()
	cfg.ZeroTier.Address = "http://127.0.0.1:9993"
	require.NoError(t, store.Save(cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sentry_dsn")
}

func TestStoreReplacePublishesSnapshot(t *testing.T) {
	first := defaultConfig()
	store := NewStore("unused.yaml", first)
	require.Same(t, first, store.Snapshot())

	second := defaultConfig()
	second.Listen = "0.0.0.0:80"
	store.Replace(second)
	assert.Same(t, second, store.Snapshot())
}
