package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Events    EventsConfig    `mapstructure:"events"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type StorageConfig struct {
	Driver        string `mapstructure:"driver"` // postgres, memory
	RunMigrations bool   `mapstructure:"run_migrations"`
}

type DatabaseConfig struct {
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	User                 string        `mapstructure:"user"`
	Password             string        `mapstructure:"password"`
	DBName               string        `mapstructure:"dbname"`
	SSLMode              string        `mapstructure:"sslmode"`
	MaxConns             int32         `mapstructure:"max_conns"`
	MinConns             int32         `mapstructure:"min_conns"`
	ConnMaxLifetime      time.Duration `mapstructure:"conn_max_lifetime"`
	SerializationRetries int           `mapstructure:"serialization_retries"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	BudgetCacheTTL time.Duration `mapstructure:"budget_cache_ttl"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LedgerConfig holds the money rules of the ledger core. All amounts are cents.
type LedgerConfig struct {
	Currency               string `mapstructure:"currency"`
	DefaultFeeBps          int64  `mapstructure:"default_fee_bps"` // 1000 = 10%
	MinWithdrawalCents     int64  `mapstructure:"min_withdrawal_cents"`
	DefaultPayoutDelayDays int    `mapstructure:"default_payout_delay_days"`
	MaxAmountCents         int64  `mapstructure:"max_amount_cents"`
}

type EventsConfig struct {
	Driver       string        `mapstructure:"driver"` // kafka, log
	Brokers      []string      `mapstructure:"brokers"`
	TopicPrefix  string        `mapstructure:"topic_prefix"`
	BufferSize   int           `mapstructure:"buffer_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type AdminConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

// ProcessorConfig configures authentication of payment-processor callbacks.
type ProcessorConfig struct {
	WebhookSecret string        `mapstructure:"webhook_secret"`
	MaxClockSkew  time.Duration `mapstructure:"max_clock_skew"`
	NonceTTL      time.Duration `mapstructure:"nonce_ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Pretty     bool   `mapstructure:"pretty"` // human-readable output (dev only)
	File       string `mapstructure:"file"`   // optional rotated log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CLG_ (Creator Ledger).
// Nested keys use underscore: CLG_DATABASE_HOST, CLG_LEDGER_DEFAULT_FEE_BPS, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.run_migrations", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "creator_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.serialization_retries", 3)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.budget_cache_ttl", "30s")
	v.SetDefault("ledger.currency", "USD")
	v.SetDefault("ledger.default_fee_bps", 1000)
	v.SetDefault("ledger.min_withdrawal_cents", 1000)
	v.SetDefault("ledger.default_payout_delay_days", 7)
	v.SetDefault("ledger.max_amount_cents", int64(1_000_000_000_000))
	v.SetDefault("events.driver", "log")
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic_prefix", "ledger.")
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.max_attempts", 5)
	v.SetDefault("events.retry_backoff", "500ms")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.jwt_issuer", "creator-ledger")
	v.SetDefault("admin.token_expiry", "1h")
	v.SetDefault("processor.webhook_secret", "")
	v.SetDefault("processor.max_clock_skew", "60s")
	v.SetDefault("processor.nonce_ttl", "120s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CLG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CLG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file; a missing file is fine when env vars are set
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l LedgerConfig) validate() error {
	if l.DefaultFeeBps < 0 || l.DefaultFeeBps > 10000 {
		return fmt.Errorf("ledger.default_fee_bps must be within [0, 10000], got %d", l.DefaultFeeBps)
	}
	if l.MinWithdrawalCents < 0 {
		return fmt.Errorf("ledger.min_withdrawal_cents must not be negative")
	}
	if l.MaxAmountCents <= 0 {
		return fmt.Errorf("ledger.max_amount_cents must be positive")
	}
	return nil
}
