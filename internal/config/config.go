// Package config loads settings from defaults, an optional config.yaml and
// WORKTRACKER_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string         `mapstructure:"port"`
	LogLevel    string         `mapstructure:"log_level"`
	LogFormat   string         `mapstructure:"log_format"`
	Database    DatabaseConfig `mapstructure:"database"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Session     SessionConfig  `mapstructure:"session"`
	AdminEmails []string       `mapstructure:"admin_emails"`
	Backup      BackupConfig   `mapstructure:"backup"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	Driver     string        `mapstructure:"driver"`
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type BackupConfig struct {
	S3            S3Config `mapstructure:"s3"`
	Passphrase    string   `mapstructure:"passphrase"`
	RetentionDays int      `mapstructure:"retention_days"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Configured reports whether enough S3 settings are present to upload.
func (s S3Config) Configured() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

// IsAdminEmail reports whether email is listed in admin_emails.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

// Load reads configuration. An empty path searches for config.yaml in the
// working directory, then WORKTRACKER_CONFIG if set.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("WORKTRACKER_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WORKTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "worktracker.db")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("session.ttl", "168h")
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("admin_emails", []string{})

	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.region", "us-east-1")
	v.SetDefault("backup.s3.access_key", "")
	v.SetDefault("backup.s3.secret_key", "")
	v.SetDefault("backup.passphrase", "")
	v.SetDefault("backup.retention_days", 30)
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid config: unknown database.driver %q", c.Database.Driver)
	}
	if c.Port == "" {
		return fmt.Errorf("invalid config: port must not be empty")
	}
	switch c.Cache.Driver {
	case "memory":
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("invalid config: cache.max_entries must be positive")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("invalid config: redis.addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("invalid config: unknown cache.driver %q", c.Cache.Driver)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("invalid config: cache.ttl must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("invalid config: session.ttl must be positive")
	}
	if c.Backup.S3.Configured() && c.Backup.Passphrase == "" {
		return fmt.Errorf("invalid config: backup.passphrase is required when S3 backups are configured")
	}
	return nil
}
