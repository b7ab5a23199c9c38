// Package config loads service configuration from config.yaml, a local
// .env file and SCHEDULED_MAILER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sungwon/scheduled-mailer/internal/auth"
	"github.com/sungwon/scheduled-mailer/internal/dispatch"
	"github.com/sungwon/scheduled-mailer/internal/logger"
	"github.com/sungwon/scheduled-mailer/internal/mailer"
	"github.com/sungwon/scheduled-mailer/internal/reminder"
)

// EnvPrefix is prepended to every environment override. For example,
// SCHEDULED_MAILER_DATABASE_URL overrides database.url.
const EnvPrefix = "SCHEDULED_MAILER"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Mailer   mailer.Config   `mapstructure:"mailer"`
	Dispatch dispatch.Config `mapstructure:"dispatch"`
	Reminder reminder.Config `mapstructure:"reminder"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Logging  logger.Config   `mapstructure:"logging"`
}

// ServerConfig holds REST API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and configures the status store.
type DatabaseConfig struct {
	// Driver is postgres, sqlite or memory.
	Driver         string        `mapstructure:"driver"`
	URL            string        `mapstructure:"url"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// Redis-backed features (run lock, rate limiting).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	JWT       auth.JWTConfig       `mapstructure:"jwt"`
	APIKeys   []auth.APIKey        `mapstructure:"api_keys"`
	RateLimit auth.RateLimitConfig `mapstructure:"rate_limit"`
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.sqlite_path", "data/scheduled-mailer.db")
	v.SetDefault("database.pool_min", 2)
	v.SetDefault("database.pool_max", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.db", 0)

	v.SetDefault("mailer.type", "stdout")
	v.SetDefault("mailer.timeout", 30*time.Second)

	d := dispatch.DefaultConfig()
	v.SetDefault("dispatch.schedule", d.Schedule)
	v.SetDefault("dispatch.timezone", d.Timezone)
	v.SetDefault("dispatch.batch_size", d.BatchSize)
	v.SetDefault("dispatch.concurrency", d.Concurrency)
	v.SetDefault("dispatch.send_timeout", d.SendTimeout)
	v.SetDefault("dispatch.lock_key", d.LockKey)
	v.SetDefault("dispatch.lock_ttl", d.LockTTL)

	v.SetDefault("reminder.lead_days", reminder.DefaultLeadDays)
	v.SetDefault("reminder.send_hour", reminder.DefaultSendHour)
	v.SetDefault("reminder.timezone", "UTC")

	v.SetDefault("auth.jwt.access_token_expiry", 15*time.Minute)
	v.SetDefault("auth.jwt.issuer", "scheduled-mailer")
	v.SetDefault("auth.jwt.audience", "scheduled-mailer-api")
	v.SetDefault("auth.rate_limit.requests_per_minute", 600)
	v.SetDefault("auth.rate_limit.auth_failure_limit", 10)
	v.SetDefault("auth.rate_limit.auth_lockout_duration", 15*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads configuration from config.yaml in configPath. A .env file in
// the working directory is loaded into the environment first if present;
// variables already set are not overwritten. Environment variables with
// prefix SCHEDULED_MAILER_ override file values.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that viper cannot express.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlite_path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Auth.JWT.SigningKey != "" && len(c.Auth.JWT.SigningKey) < 32 {
		return errors.New("auth.jwt.signing_key must be at least 32 characters")
	}
	return nil
}
