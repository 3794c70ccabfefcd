// Package config defines the top-level configuration for the settlement
// runtime and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SETTLER_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Feeds      FeedsConfig      `toml:"feeds"`
	Baseline   BaselineConfig   `toml:"baseline"`
	Resolution ResolutionConfig `toml:"resolution"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// FeedsConfig maps each league to the websocket endpoint that publishes its
// game documents. Leagues absent from the map are not run.
type FeedsConfig struct {
	NFL string `toml:"nfl"`
	NBA string `toml:"nba"`
}

// URLs returns the configured league endpoints, skipping empty entries.
func (f FeedsConfig) URLs() map[string]string {
	out := make(map[string]string, 2)
	if f.NFL != "" {
		out["nfl"] = f.NFL
	}
	if f.NBA != "" {
		out["nba"] = f.NBA
	}
	return out
}

// BaselineConfig holds baseline cache parameters.
type BaselineConfig struct {
	TTL duration `toml:"ttl"`
}

// ResolutionConfig holds settlement execution parameters. Mode selects
// whether resolutions are applied inline ("direct") or pushed onto the Redis
// stream for the worker ("queued").
type ResolutionConfig struct {
	Mode        string   `toml:"mode"`
	Stream      string   `toml:"stream"`
	Group       string   `toml:"group"`
	Consumer    string   `toml:"consumer"`
	MaxAttempts int      `toml:"max_attempts"`
	BaseBackoff duration `toml:"base_backoff"`
}

// NotifyConfig holds announcement channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "12h", "500ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "12h" or "500ms".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Baseline: BaselineConfig{
			TTL: duration{12 * time.Hour},
		},
		Resolution: ResolutionConfig{
			Mode:        "direct",
			Stream:      "settler:resolutions",
			Group:       "settler",
			Consumer:    "worker-1",
			MaxAttempts: 5,
			BaseBackoff: duration{500 * time.Millisecond},
		},
		Notify: NotifyConfig{
			Events: []string{"resolved", "washed"},
		},
		LogLevel: "info",
	}
}

// validResolutionModes enumerates the accepted values for Resolution.Mode.
var validResolutionModes = map[string]bool{
	"direct": true,
	"queued": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Feeds
	if len(c.Feeds.URLs()) == 0 {
		errs = append(errs, "feeds: at least one league endpoint must be set")
	}
	for league, url := range c.Feeds.URLs() {
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			errs = append(errs, fmt.Sprintf("feeds: %s endpoint %q must be a ws:// or wss:// URL", league, url))
		}
	}

	// Baseline
	if c.Baseline.TTL.Duration <= 0 {
		errs = append(errs, "baseline: ttl must be > 0")
	}

	// Resolution
	if !validResolutionModes[strings.ToLower(c.Resolution.Mode)] {
		errs = append(errs, fmt.Sprintf("resolution: unknown mode %q (valid: direct, queued)", c.Resolution.Mode))
	}
	if c.Resolution.Stream == "" {
		errs = append(errs, "resolution: stream must not be empty")
	}
	if c.Resolution.Group == "" {
		errs = append(errs, "resolution: group must not be empty")
	}
	if c.Resolution.Consumer == "" {
		errs = append(errs, "resolution: consumer must not be empty")
	}
	if c.Resolution.MaxAttempts < 1 {
		errs = append(errs, "resolution: max_attempts must be >= 1")
	}
	if c.Resolution.BaseBackoff.Duration <= 0 {
		errs = append(errs, "resolution: base_backoff must be > 0")
	}

	// Notify — telegram credentials come in pairs.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
