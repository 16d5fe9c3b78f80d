// Package config provides configuration management for epgnow using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "EPGNOW"

// Default configuration values.
const (
	defaultServerPort       = 8080
	defaultServerTimeout    = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultDisplayOffset    = "+1:00"
	defaultUpdateCron       = "0 3 * * *"
	defaultStaleAfter       = 24 * time.Hour
	defaultFetchTimeout     = 100 * time.Second
	defaultRetryAttempts    = 2
	defaultRetryDelay       = time.Second
	defaultBatchSize        = 1000
	defaultMaxDocumentSize  = "1GB"
	defaultMaxOpenConns     = 25
	defaultMaxIdleConns     = 10
	defaultConnMaxIdleTime  = 30 * time.Minute
	defaultWatcherDebounce  = 2 * time.Second
	defaultUpcomingLimit    = 2
	defaultCircuitThreshold = 5
	defaultCircuitTimeout   = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	EPG       EPGConfig       `mapstructure:"epg" yaml:"epg"`
	Ingestion IngestionConfig `mapstructure:"ingestion" yaml:"ingestion"`
	Watcher   WatcherConfig   `mapstructure:"watcher" yaml:"watcher"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn" yaml:"dsn" masq:"secret"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // trace, debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// EPGConfig holds guide source and query configuration.
type EPGConfig struct {
	// URL is the guide location. It may be a comma-separated list, a
	// playlist of URLs, a local path or a file:// URL.
	URL           string        `mapstructure:"url" yaml:"url"`
	DisplayOffset string        `mapstructure:"display_offset" yaml:"display_offset"`
	UpdateCron    string        `mapstructure:"update_cron" yaml:"update_cron"`
	StaleAfter    time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
	UpcomingLimit int           `mapstructure:"upcoming_limit" yaml:"upcoming_limit"`
}

// IngestionConfig holds download and parsing configuration.
type IngestionConfig struct {
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	CircuitThreshold int           `mapstructure:"circuit_threshold" yaml:"circuit_threshold"`
	CircuitTimeout   time.Duration `mapstructure:"circuit_timeout" yaml:"circuit_timeout"`
	BatchSize        int           `mapstructure:"batch_size" yaml:"batch_size"`
	// Workers is the parse pool size; 0 selects max(1, cpus-1).
	Workers int `mapstructure:"workers" yaml:"workers"`
	// StrictJoin makes a single failed chunk fail the whole parse.
	StrictJoin bool `mapstructure:"strict_join" yaml:"strict_join"`
	// MaxDocumentSize caps the decompressed size of a single guide document.
	// Supports human-readable values like "512MB" or "1GiB".
	MaxDocumentSize ByteSize `mapstructure:"max_document_size" yaml:"max_document_size"`
}

// WatcherConfig holds playlist upload watcher configuration.
type WatcherConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir      string        `mapstructure:"dir" yaml:"dir"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with EPGNOW_ and use underscores for nesting.
// Example: EPGNOW_SERVER_PORT=8080. TIMEZONE_OFFSET is also honoured for
// epg.display_offset.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/epgnow")
		v.AddConfigPath("$HOME/.epgnow")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("epg.display_offset", EnvPrefix+"_EPG_DISPLAY_OFFSET", "TIMEZONE_OFFSET"); err != nil {
		return nil, fmt.Errorf("binding environment: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "epg.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("epg.url", "")
	v.SetDefault("epg.display_offset", defaultDisplayOffset)
	v.SetDefault("epg.update_cron", defaultUpdateCron)
	v.SetDefault("epg.stale_after", defaultStaleAfter)
	v.SetDefault("epg.upcoming_limit", defaultUpcomingLimit)

	v.SetDefault("ingestion.fetch_timeout", defaultFetchTimeout)
	v.SetDefault("ingestion.retry_attempts", defaultRetryAttempts)
	v.SetDefault("ingestion.retry_delay", defaultRetryDelay)
	v.SetDefault("ingestion.circuit_threshold", defaultCircuitThreshold)
	v.SetDefault("ingestion.circuit_timeout", defaultCircuitTimeout)
	v.SetDefault("ingestion.batch_size", defaultBatchSize)
	v.SetDefault("ingestion.workers", 0)
	v.SetDefault("ingestion.strict_join", false)
	v.SetDefault("ingestion.max_document_size", defaultMaxDocumentSize)

	v.SetDefault("watcher.enabled", false)
	v.SetDefault("watcher.dir", "uploads")
	v.SetDefault("watcher.debounce", defaultWatcherDebounce)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if _, err := cron.ParseStandard(c.EPG.UpdateCron); err != nil {
		return fmt.Errorf("epg.update_cron is invalid: %w", err)
	}
	if c.EPG.UpcomingLimit < 1 {
		return fmt.Errorf("epg.upcoming_limit must be at least 1")
	}

	if c.Ingestion.BatchSize < 1 {
		return fmt.Errorf("ingestion.batch_size must be at least 1")
	}
	if c.Ingestion.Workers < 0 {
		return fmt.Errorf("ingestion.workers must not be negative")
	}
	if c.Ingestion.RetryAttempts < 0 {
		return fmt.Errorf("ingestion.retry_attempts must not be negative")
	}

	if c.Watcher.Enabled && c.Watcher.Dir == "" {
		return fmt.Errorf("watcher.dir is required when the watcher is enabled")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
