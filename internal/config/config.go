// Package config provides configuration management for the Constable server.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kesrow/constable/internal/domain"
)

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Search     SearchConfig     `mapstructure:"search"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the server listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database connection settings.
// Supports both PostgreSQL and SQLite backends.
type DatabaseConfig struct {
	// Driver specifies the database driver: "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// SQLite settings (used when Driver is "sqlite")
	Path            string `mapstructure:"path"`
	JournalMode     string `mapstructure:"journal_mode"`
	BusyTimeout     int    `mapstructure:"busy_timeout"`
	SynchronousMode string `mapstructure:"synchronous_mode"`
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings. Redis is optional; with
// Enabled false the server falls back to in-process caching and locking.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SessionTTL is the lifetime of issued session tokens.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// BcryptCost is the bcrypt work factor for password hashing.
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// SearchConfig holds search pagination bounds.
type SearchConfig struct {
	// DefaultLimit is the page size when the client does not ask for one.
	DefaultLimit int `mapstructure:"default_limit"`

	// MaxLimit caps the page size; larger requests are clamped.
	MaxLimit int `mapstructure:"max_limit"`
}

// VocabularyConfig holds the controlled value sets for the five filterable
// dimensions. All five must be non-empty for the server to start.
type VocabularyConfig struct {
	Offences []string `mapstructure:"offences"`
	Areas    []string `mapstructure:"areas"`
	Ages     []string `mapstructure:"ages"`
	Genders  []string `mapstructure:"genders"`
	Years    []string `mapstructure:"years"`
}

// Values returns the vocabulary as a dimension-keyed map, the shape the
// registry constructor expects.
func (c VocabularyConfig) Values() map[domain.Dimension][]string {
	return map[domain.Dimension][]string{
		domain.DimensionOffence: c.Offences,
		domain.DimensionArea:    c.Areas,
		domain.DimensionAge:     c.Ages,
		domain.DimensionGender:  c.Genders,
		domain.DimensionYear:    c.Years,
	}
}

// DatasetConfig holds dataset import settings.
type DatasetConfig struct {
	// LockDisabled turns off the import lock. Only safe when a single
	// operator runs imports against a private database.
	LockDisabled bool `mapstructure:"lock_disabled"`

	// S3Region is the AWS region used when importing from s3:// URIs.
	S3Region string `mapstructure:"s3_region"`

	// S3Endpoint overrides the S3 endpoint, for MinIO-style stores.
	S3Endpoint string `mapstructure:"s3_endpoint"`

	// S3AccessKey and S3SecretKey select static credentials; when empty
	// the default AWS credential chain applies.
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the port for the metrics HTTP server.
	Port int `mapstructure:"port"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with CONSTABLE_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CONSTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/constable")
	}

	// Config file not found is acceptable; defaults and env vars suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "constable")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "constable")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	// SQLite defaults
	v.SetDefault("database.path", "./data/constable.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.synchronous_mode", "NORMAL")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Auth defaults
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	// Search defaults
	v.SetDefault("search.default_limit", 25)
	v.SetDefault("search.max_limit", 100)

	// Vocabulary defaults
	v.SetDefault("vocabulary.offences", []string{
		"theft", "assault", "burglary", "robbery", "fraud",
		"criminal damage", "drug offences", "public order", "vehicle crime",
	})
	v.SetDefault("vocabulary.areas", []string{
		"north", "south", "east", "west", "central",
	})
	v.SetDefault("vocabulary.ages", []string{
		"0-17", "18-34", "35-54", "55+",
	})
	v.SetDefault("vocabulary.genders", []string{
		"female", "male", "unknown",
	})
	v.SetDefault("vocabulary.years", defaultYears())

	// Dataset defaults
	v.SetDefault("dataset.lock_disabled", false)
	v.SetDefault("dataset.s3_region", "eu-west-2")
	v.SetDefault("dataset.s3_endpoint", "")
	v.SetDefault("dataset.s3_access_key", "")
	v.SetDefault("dataset.s3_secret_key", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")
}

// defaultYears covers 2001 through 2025 as string tokens.
func defaultYears() []string {
	years := make([]string, 0, 25)
	for y := 2001; y <= 2025; y++ {
		years = append(years, strconv.Itoa(y))
	}
	return years
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}

	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	} else if c.Database.Driver == "sqlite" {
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite driver")
		}
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}

	if c.Search.MaxLimit < 1 {
		return fmt.Errorf("search.max_limit must be positive")
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit must be between 1 and search.max_limit")
	}

	for name, values := range map[string][]string{
		"vocabulary.offences": c.Vocabulary.Offences,
		"vocabulary.areas":    c.Vocabulary.Areas,
		"vocabulary.ages":     c.Vocabulary.Ages,
		"vocabulary.genders":  c.Vocabulary.Genders,
		"vocabulary.years":    c.Vocabulary.Years,
	} {
		if len(values) == 0 {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
