package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Events    EventsConfig    `mapstructure:"events"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Report    ReportConfig    `mapstructure:"report"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// EventsConfig defines where activity events are read from
type EventsConfig struct {
	Mongo MongoConfig `mapstructure:"mongo"`
}

// MongoConfig defines the MongoDB event store connection
type MongoConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	Collection     string `mapstructure:"collection"`
	ConnectTimeout string `mapstructure:"connect_timeout"`
	QueryTimeout   string `mapstructure:"query_timeout"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the Redis connection used for names and report snapshots
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	ReportTTL    string `mapstructure:"report_ttl"`
}

// IdentityConfig defines display name caching
type IdentityConfig struct {
	CacheSize int    `mapstructure:"cache_size"`
	CacheTTL  string `mapstructure:"cache_ttl"`
}

// ReportConfig defines report defaults
type ReportConfig struct {
	Timezone         string   `mapstructure:"timezone"`
	Locations        []string `mapstructure:"locations"`
	FetchConcurrency int      `mapstructure:"fetch_concurrency"`
	FetchTimeout     string   `mapstructure:"fetch_timeout"`
}

// SchedulerConfig defines the daily report job
type SchedulerConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	RunTime string   `mapstructure:"run_time"` // HH:MM in report.timezone
	Kinds   []string `mapstructure:"kinds"`
}

// ServerConfig defines the metrics listener
type ServerConfig struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("FLEETHOURS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration used when no file or environment
// overrides are present
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Keys returns every recognised configuration key
func Keys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Event store defaults
	v.SetDefault("events.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("events.mongo.database", "fleet")
	v.SetDefault("events.mongo.collection", "events")
	v.SetDefault("events.mongo.connect_timeout", "10s")
	v.SetDefault("events.mongo.query_timeout", "30s")

	// Redis defaults
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.report_ttl", "2160h")

	// Identity defaults
	v.SetDefault("identity.cache_size", 10000)
	v.SetDefault("identity.cache_ttl", "10m")

	// Report defaults
	v.SetDefault("report.timezone", "UTC")
	v.SetDefault("report.locations", []string{})
	v.SetDefault("report.fetch_concurrency", 4)
	v.SetDefault("report.fetch_timeout", "30s")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.run_time", "00:15")
	v.SetDefault("scheduler.kinds", []string{"vehicles", "drivers"})

	// Server defaults
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Events.Mongo.URI == "" {
		return fmt.Errorf("events.mongo.uri is required")
	}
	if cfg.Events.Mongo.Database == "" || cfg.Events.Mongo.Collection == "" {
		return fmt.Errorf("events.mongo.database and events.mongo.collection are required")
	}

	if cfg.Storage.Redis.Host == "" {
		return fmt.Errorf("storage.redis.host is required")
	}
	if cfg.Storage.Redis.Port < 0 || cfg.Storage.Redis.Port > 65535 {
		return fmt.Errorf("invalid Redis port: %d", cfg.Storage.Redis.Port)
	}

	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	// Validate durations up front so later parsing cannot fail
	durations := map[string]string{
		"events.mongo.connect_timeout": cfg.Events.Mongo.ConnectTimeout,
		"events.mongo.query_timeout":   cfg.Events.Mongo.QueryTimeout,
		"storage.redis.dial_timeout":   cfg.Storage.Redis.DialTimeout,
		"storage.redis.read_timeout":   cfg.Storage.Redis.ReadTimeout,
		"storage.redis.write_timeout":  cfg.Storage.Redis.WriteTimeout,
		"storage.redis.report_ttl":     cfg.Storage.Redis.ReportTTL,
		"identity.cache_ttl":           cfg.Identity.CacheTTL,
		"report.fetch_timeout":         cfg.Report.FetchTimeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	}

	if cfg.Report.Timezone == "" {
		cfg.Report.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(cfg.Report.Timezone); err != nil {
		return fmt.Errorf("invalid report.timezone %q: %w", cfg.Report.Timezone, err)
	}
	if cfg.Report.FetchConcurrency < 0 {
		return fmt.Errorf("report.fetch_concurrency must not be negative")
	}

	if _, _, err := ParseRunTime(cfg.Scheduler.RunTime); err != nil {
		return err
	}
	for _, kind := range cfg.Scheduler.Kinds {
		switch kind {
		case "vehicles", "drivers":
		default:
			return fmt.Errorf("unknown scheduler kind: %q", kind)
		}
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %q", cfg.Logging.Format)
	}

	return nil
}

// ParseRunTime parses an HH:MM time of day
func ParseRunTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scheduler.run_time %q (expected HH:MM): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
