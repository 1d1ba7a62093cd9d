package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Security     SecurityConfig     `mapstructure:"security"`
	Admins       AdminsConfig       `mapstructure:"admins"`
	Purchase     PurchaseConfig     `mapstructure:"purchase"`
	Currency     CurrencyConfig     `mapstructure:"currency"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	TxRetries       int           `mapstructure:"tx_retries"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type ConversationConfig struct {
	Store string        `mapstructure:"store"` // redis, memory
	TTL   time.Duration `mapstructure:"ttl"`
}

// GatewayConfig describes the chat adapter that calls the kernel and
// receives its notifications.
type GatewayConfig struct {
	AccessKey    string        `mapstructure:"access_key"`
	Secret       string        `mapstructure:"secret"`
	NotifyURL    string        `mapstructure:"notify_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type SecurityConfig struct {
	MasterKey      string        `mapstructure:"master_key"` // 32-byte hex-encoded key
	ActionTokenTTL time.Duration `mapstructure:"action_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

type AdminsConfig struct {
	IDs []string `mapstructure:"ids"`
}

type PurchaseConfig struct {
	AttemptTTL time.Duration `mapstructure:"attempt_ttl"`
}

type CurrencyConfig struct {
	Code   string `mapstructure:"code"`
	Symbol string `mapstructure:"symbol"`
}

type RateLimitConfig struct {
	Enabled             bool  `mapstructure:"enabled"`
	PurchasesPerMinute  int64 `mapstructure:"purchases_per_minute"`
	FlowInputsPerMinute int64 `mapstructure:"flow_inputs_per_minute"`
	ReadsPerMinute      int64 `mapstructure:"reads_per_minute"`
	AdminPerMinute      int64 `mapstructure:"admin_per_minute"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from an optional .env file, a config file and
// environment variables. Environment variables override file values.
// Prefix: VND_. Nested keys use underscore: VND_DATABASE_HOST, VND_ADMINS_IDS.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("VND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Admins.IDs = compact(cfg.Admins.IDs)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "vending")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.tx_retries", 3)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("conversation.store", "redis")
	v.SetDefault("conversation.ttl", "30m")
	v.SetDefault("gateway.access_key", "")
	v.SetDefault("gateway.secret", "")
	v.SetDefault("gateway.notify_url", "")
	v.SetDefault("gateway.timeout", "5s")
	v.SetDefault("gateway.max_attempts", 3)
	v.SetDefault("gateway.retry_backoff", "250ms")
	v.SetDefault("security.master_key", "")
	v.SetDefault("security.action_token_ttl", "72h")
	v.SetDefault("security.issuer", "vending-kernel")
	v.SetDefault("admins.ids", []string{})
	v.SetDefault("purchase.attempt_ttl", "10m")
	v.SetDefault("currency.code", "INR")
	v.SetDefault("currency.symbol", "₹")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.purchases_per_minute", 20)
	v.SetDefault("ratelimit.flow_inputs_per_minute", 60)
	v.SetDefault("ratelimit.reads_per_minute", 120)
	v.SetDefault("ratelimit.admin_per_minute", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// loadDotEnv populates the process environment from .env files without
// overriding variables that are already set. Missing files are ignored.
func loadDotEnv(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading env file %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks the settings the kernel cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q", DriverPostgres, DriverMemory))
	}
	switch c.Conversation.Store {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("conversation.store=redis requires redis.enabled"))
		}
	default:
		errs = append(errs, errors.New("conversation.store must be \"redis\" or \"memory\""))
	}
	if c.Gateway.AccessKey == "" || c.Gateway.Secret == "" {
		errs = append(errs, errors.New("gateway.access_key and gateway.secret are required"))
	}
	if len(c.Security.MasterKey) != 64 {
		errs = append(errs, errors.New("security.master_key must be 64 hex characters"))
	}
	return errors.Join(errs...)
}

func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
