package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Feed      FeedConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis specific configuration
type RedisConfig struct {
	URL            string
	SnapshotPrefix string
	SnapshotTTL    time.Duration
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Brokers string
	Topics  map[string]string
}

// FeedConfig holds price feed provider configuration
type FeedConfig struct {
	BinanceURL   string
	CoinGeckoURL string
	Timeout      time.Duration
}

// SchedulerConfig holds polling scheduler configuration
type SchedulerConfig struct {
	Interval       time.Duration
	TrackedSymbols []string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Read from environment variables
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i, s := range cfg.Scheduler.TrackedSymbols {
		cfg.Scheduler.TrackedSymbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")

	// Redis defaults
	v.SetDefault("redis.snapshotPrefix", "crypto-price:")
	v.SetDefault("redis.snapshotTTL", "10s")

	// Kafka topic defaults
	v.SetDefault("kafka.topics.alertTriggers", "alert-triggers")

	// Feed defaults
	v.SetDefault("feed.binanceURL", "https://api.binance.com/api/v3")
	v.SetDefault("feed.coinGeckoURL", "https://api.coingecko.com/api/v3")
	v.SetDefault("feed.timeout", "10s")

	// Scheduler defaults
	v.SetDefault("scheduler.interval", "5s")
	v.SetDefault("scheduler.trackedSymbols", []string{"BTC", "ETH", "BNB", "ADA", "DOT"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
