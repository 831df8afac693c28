package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
database:
  host: db.internal
  port: "5432"
  user: svc
  password: secret
  dbname: alerts
redis:
  url: redis://cache:6379/1
kafka:
  brokers: broker-1:9092,broker-2:9092
scheduler:
  interval: 3s
  trackedSymbols:
    - btc
    - " eth "
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Scheduler.Interval != 3*time.Second {
		t.Errorf("Scheduler.Interval = %v, want 3s", cfg.Scheduler.Interval)
	}
	if want := []string{"BTC", "ETH"}; !reflect.DeepEqual(cfg.Scheduler.TrackedSymbols, want) {
		t.Errorf("Scheduler.TrackedSymbols = %v, want %v (uppercased, trimmed)", cfg.Scheduler.TrackedSymbols, want)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: localhost
  port: "5432"
  user: svc
  password: secret
  dbname: alerts
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want default 8080", cfg.Server.Port)
	}
	if cfg.Scheduler.Interval != 5*time.Second {
		t.Errorf("Scheduler.Interval = %v, want default 5s", cfg.Scheduler.Interval)
	}
	if want := []string{"BTC", "ETH", "BNB", "ADA", "DOT"}; !reflect.DeepEqual(cfg.Scheduler.TrackedSymbols, want) {
		t.Errorf("Scheduler.TrackedSymbols = %v, want defaults %v", cfg.Scheduler.TrackedSymbols, want)
	}
	if cfg.Kafka.Topics["alertTriggers"] != "alert-triggers" {
		t.Errorf("Kafka alertTriggers topic = %q, want default alert-triggers", cfg.Kafka.Topics["alertTriggers"])
	}
	if cfg.Redis.SnapshotTTL != 10*time.Second {
		t.Errorf("Redis.SnapshotTTL = %v, want default 10s", cfg.Redis.SnapshotTTL)
	}
	if cfg.Feed.BinanceURL == "" || cfg.Feed.CoinGeckoURL == "" {
		t.Error("feed provider URLs should fall back to defaults")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
