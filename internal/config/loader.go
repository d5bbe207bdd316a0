package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HUBTRADER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HUBTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── ESI ──
	setStr(&cfg.ESI.BaseURL, "HUBTRADER_ESI_BASE_URL")
	setStr(&cfg.ESI.UserAgent, "HUBTRADER_ESI_USER_AGENT")
	setInt(&cfg.ESI.RateLimit, "HUBTRADER_ESI_RATE_LIMIT")
	setDuration(&cfg.ESI.RateWindow, "HUBTRADER_ESI_RATE_WINDOW")
	setDuration(&cfg.ESI.PageTimeout, "HUBTRADER_ESI_PAGE_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "HUBTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "HUBTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "HUBTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "HUBTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "HUBTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "HUBTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "HUBTRADER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "HUBTRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "HUBTRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "HUBTRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "HUBTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HUBTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HUBTRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HUBTRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HUBTRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HUBTRADER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "HUBTRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HUBTRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "HUBTRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HUBTRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HUBTRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HUBTRADER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HUBTRADER_S3_FORCE_PATH_STYLE")

	// ── Scheduler ──
	setInt32Slice(&cfg.Scheduler.Regions, "HUBTRADER_SCHEDULER_REGIONS")
	setDuration(&cfg.Scheduler.FetchInterval, "HUBTRADER_SCHEDULER_FETCH_INTERVAL")
	setDuration(&cfg.Scheduler.CleanupInterval, "HUBTRADER_SCHEDULER_CLEANUP_INTERVAL")
	setInt(&cfg.Scheduler.RetentionDays, "HUBTRADER_SCHEDULER_RETENTION_DAYS")
	setStr(&cfg.Scheduler.CommandChannel, "HUBTRADER_SCHEDULER_COMMAND_CHANNEL")
	setInt(&cfg.Scheduler.BackfillDays, "HUBTRADER_SCHEDULER_BACKFILL_DAYS")

	// ── Sync ──
	setBool(&cfg.Sync.Enabled, "HUBTRADER_SYNC_ENABLED")
	setDuration(&cfg.Sync.Interval, "HUBTRADER_SYNC_INTERVAL")
	setDuration(&cfg.Sync.CacheTTL, "HUBTRADER_SYNC_CACHE_TTL")

	// ── Profit ──
	setFloat64(&cfg.Profit.SalesTaxRate, "HUBTRADER_PROFIT_SALES_TAX_RATE")
	setFloat64(&cfg.Profit.BrokerFeeRate, "HUBTRADER_PROFIT_BROKER_FEE_RATE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "HUBTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "HUBTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "HUBTRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "HUBTRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "HUBTRADER_MODE")
	setStr(&cfg.LogLevel, "HUBTRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setInt32Slice parses a comma-separated list of ids, e.g. "10000002,10000043".
// The whole list is rejected when any element fails to parse.
func setInt32Slice(dst *[]int32, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	parsed := make([]int32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return
		}
		parsed = append(parsed, int32(n))
	}
	if len(parsed) > 0 {
		*dst = parsed
	}
}
