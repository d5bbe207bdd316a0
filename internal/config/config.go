// Package config defines the top-level configuration for hubtrader and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by HUBTRADER_* environment
// variables.
type Config struct {
	ESI       ESIConfig       `toml:"esi"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Sync      SyncConfig      `toml:"sync"`
	Profit    ProfitConfig    `toml:"profit"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ESIConfig holds the upstream market API parameters.
type ESIConfig struct {
	BaseURL     string   `toml:"base_url"`
	UserAgent   string   `toml:"user_agent"`
	RateLimit   int      `toml:"rate_limit"` // requests per rate_window
	RateWindow  duration `toml:"rate_window"`
	PageTimeout duration `toml:"page_timeout"`
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

// S3Config holds the cold-storage object store parameters. Leave Bucket
// empty to disable archiving; cleanup then deletes without a cold copy.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SchedulerConfig holds the aggregation pipeline parameters.
type SchedulerConfig struct {
	Regions         []int32  `toml:"regions"`
	FetchInterval   duration `toml:"fetch_interval"`
	CleanupInterval duration `toml:"cleanup_interval"`
	RetentionDays   int      `toml:"retention_days"`
	CommandChannel  string   `toml:"command_channel"`
	BackfillDays    int      `toml:"backfill_days"`
}

// SyncConfig holds the character order-sync parameters.
type SyncConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	CacheTTL duration `toml:"cache_ttl"` // aggregate price cache expiry
}

// ProfitConfig holds the profit attribution parameters. Rates are fractions,
// not percentages: 0.036 means 3.6%.
type ProfitConfig struct {
	SalesTaxRate  float64 `toml:"sales_tax_rate"`
	BrokerFeeRate float64 `toml:"broker_fee_rate"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "3h", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match config.example.toml.
func Defaults() Config {
	return Config{
		ESI: ESIConfig{
			BaseURL:     "https://esi.evetech.net/latest",
			UserAgent:   "hubtrader",
			RateLimit:   100,
			RateWindow:  duration{time.Minute},
			PageTimeout: duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "hubtrader",
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
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Scheduler: SchedulerConfig{
			Regions:         []int32{10000002}, // The Forge
			FetchInterval:   duration{3 * time.Hour},
			CleanupInterval: duration{24 * time.Hour},
			RetentionDays:   90,
			CommandChannel:  "hubtrader:commands",
			BackfillDays:    90,
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: duration{15 * time.Minute},
			CacheTTL: duration{6 * time.Hour},
		},
		Profit: ProfitConfig{
			SalesTaxRate:  0.036,
			BrokerFeeRate: 0.030,
		},
		Notify: NotifyConfig{
			Events: []string{"fetch_failure", "ledger_corrupt"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":      true,
	"sweep":    true,
	"backfill": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, sweep, backfill)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.ESI.BaseURL == "" {
		errs = append(errs, "esi: base_url must not be empty")
	}
	if c.ESI.RateLimit < 1 {
		errs = append(errs, "esi: rate_limit must be >= 1")
	}
	if c.ESI.RateWindow.Duration <= 0 {
		errs = append(errs, "esi: rate_window must be positive")
	}
	if c.ESI.PageTimeout.Duration <= 0 {
		errs = append(errs, "esi: page_timeout must be positive")
	}

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

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archiving is optional, but a configured bucket needs its companions.
	if c.S3.Bucket != "" {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when a bucket is configured")
		}
	}

	if len(c.Scheduler.Regions) == 0 {
		errs = append(errs, "scheduler: at least one region must be configured")
	}
	for _, r := range c.Scheduler.Regions {
		if r <= 0 {
			errs = append(errs, fmt.Sprintf("scheduler: invalid region id %d", r))
		}
	}
	if c.Scheduler.FetchInterval.Duration <= 0 {
		errs = append(errs, "scheduler: fetch_interval must be positive")
	}
	if c.Scheduler.CleanupInterval.Duration <= 0 {
		errs = append(errs, "scheduler: cleanup_interval must be positive")
	}
	if c.Scheduler.RetentionDays < 1 {
		errs = append(errs, "scheduler: retention_days must be >= 1")
	}
	if c.Scheduler.CommandChannel == "" {
		errs = append(errs, "scheduler: command_channel must not be empty")
	}
	if c.Scheduler.BackfillDays < 1 {
		errs = append(errs, "scheduler: backfill_days must be >= 1")
	}

	if c.Sync.Enabled {
		if c.Sync.Interval.Duration <= 0 {
			errs = append(errs, "sync: interval must be positive when enabled")
		}
		if c.Sync.CacheTTL.Duration < 0 {
			errs = append(errs, "sync: cache_ttl must not be negative")
		}
	}

	if c.Profit.SalesTaxRate < 0 || c.Profit.SalesTaxRate >= 1 {
		errs = append(errs, fmt.Sprintf("profit: sales_tax_rate must be in [0, 1), got %v", c.Profit.SalesTaxRate))
	}
	if c.Profit.BrokerFeeRate < 0 || c.Profit.BrokerFeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("profit: broker_fee_rate must be in [0, 1), got %v", c.Profit.BrokerFeeRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Retention returns the retention horizon as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Scheduler.RetentionDays) * 24 * time.Hour
}

// BackfillHorizon returns how far back history backfill reaches.
func (c *Config) BackfillHorizon() time.Duration {
	return time.Duration(c.Scheduler.BackfillDays) * 24 * time.Hour
}
