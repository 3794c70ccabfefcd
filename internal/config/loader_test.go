package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[postgres]
host = "db.internal"
password = "secret"

[feeds]
nfl = "wss://stats.example.com/nfl"

[resolution]
mode = "queued"
base_backoff = "250ms"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 12*time.Hour, cfg.Baseline.TTL.Duration)
	assert.Equal(t, "queued", cfg.Resolution.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Resolution.BaseBackoff.Duration)
	assert.Equal(t, map[string]string{"nfl": "wss://stats.example.com/nfl"}, cfg.Feeds.URLs())
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `
[postgres]
password = "from-file"

[feeds]
nba = "wss://stats.example.com/nba"
`)

	t.Setenv("SETTLER_POSTGRES_PASSWORD", "from-env")
	t.Setenv("SETTLER_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SETTLER_BASELINE_TTL", "6h")
	t.Setenv("SETTLER_RESOLUTION_MAX_ATTEMPTS", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Postgres.Password)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 6*time.Hour, cfg.Baseline.TTL.Duration)
	assert.Equal(t, 9, cfg.Resolution.MaxAttempts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_DefaultsWithFeedPass(t *testing.T) {
	cfg := Defaults()
	cfg.Feeds.NFL = "wss://stats.example.com/nfl"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "verbose"
	cfg.Redis.Addr = ""
	cfg.Resolution.Mode = "batch"
	cfg.Feeds.NFL = "https://not-a-websocket"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "resolution: unknown mode")
	assert.Contains(t, err.Error(), "ws:// or wss://")
}

func TestValidate_NoFeedsConfigured(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one league")
}

func TestValidate_TelegramCredentialsComeInPairs(t *testing.T) {
	cfg := Defaults()
	cfg.Feeds.NFL = "wss://stats.example.com/nfl"
	cfg.Notify.TelegramToken = "token"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
