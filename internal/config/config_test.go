package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
mode = "sweep"
log_level = "debug"

[scheduler]
regions = [10000002, 10000043]
fetch_interval = "1h30m"

[profit]
sales_tax_rate = 0.045
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "sweep" {
		t.Errorf("mode = %q, want sweep", cfg.Mode)
	}
	if cfg.Scheduler.FetchInterval.Duration != 90*time.Minute {
		t.Errorf("fetch_interval = %v, want 1h30m", cfg.Scheduler.FetchInterval.Duration)
	}
	if len(cfg.Scheduler.Regions) != 2 || cfg.Scheduler.Regions[1] != 10000043 {
		t.Errorf("regions = %v, want [10000002 10000043]", cfg.Scheduler.Regions)
	}
	if cfg.Profit.SalesTaxRate != 0.045 {
		t.Errorf("sales_tax_rate = %v, want 0.045", cfg.Profit.SalesTaxRate)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q, want default", cfg.Redis.Addr)
	}
	if cfg.Profit.BrokerFeeRate != 0.030 {
		t.Errorf("broker_fee_rate = %v, want default 0.030", cfg.Profit.BrokerFeeRate)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`mode = "run"`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("HUBTRADER_MODE", "backfill")
	t.Setenv("HUBTRADER_SCHEDULER_REGIONS", "10000043, 10000030")
	t.Setenv("HUBTRADER_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("HUBTRADER_SYNC_INTERVAL", "5m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "backfill" {
		t.Errorf("mode = %q, want backfill", cfg.Mode)
	}
	if len(cfg.Scheduler.Regions) != 2 || cfg.Scheduler.Regions[0] != 10000043 {
		t.Errorf("regions = %v, want [10000043 10000030]", cfg.Scheduler.Regions)
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Errorf("postgres password not overridden")
	}
	if cfg.Sync.Interval.Duration != 5*time.Minute {
		t.Errorf("sync interval = %v, want 5m", cfg.Sync.Interval.Duration)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "serve" }, "unknown mode"},
		{"no regions", func(c *Config) { c.Scheduler.Regions = nil }, "at least one region"},
		{"negative region", func(c *Config) { c.Scheduler.Regions = []int32{-1} }, "invalid region id"},
		{"zero fetch interval", func(c *Config) { c.Scheduler.FetchInterval.Duration = 0 }, "fetch_interval"},
		{"tax rate too high", func(c *Config) { c.Profit.SalesTaxRate = 1.5 }, "sales_tax_rate"},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"bucket without region", func(c *Config) { c.S3.Bucket = "archive"; c.S3.Region = "" }, "s3: region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate passed, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "dbpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.AccessKey = "AKIA123"
	cfg.S3.SecretKey = "shhh"
	cfg.Notify.TelegramToken = "bot-token"

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"postgres password": red.Postgres.Password,
		"redis password":    red.Redis.Password,
		"s3 access key":     red.S3.AccessKey,
		"s3 secret key":     red.S3.SecretKey,
		"telegram token":    red.Notify.TelegramToken,
	} {
		if got != "***" {
			t.Errorf("%s not redacted: %q", name, got)
		}
	}

	// Originals untouched.
	if cfg.Postgres.Password != "dbpass" {
		t.Error("redaction mutated the original config")
	}

	red.Scheduler.Regions[0] = 0
	if cfg.Scheduler.Regions[0] == 0 {
		t.Error("redacted copy shares the regions slice with the original")
	}
}
