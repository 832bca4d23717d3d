package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goodtune/fleethours/internal/activity"
	"github.com/goodtune/fleethours/internal/config"
	"github.com/goodtune/fleethours/internal/identity"
	"github.com/goodtune/fleethours/internal/report"
	"github.com/goodtune/fleethours/internal/storage"
	"github.com/goodtune/fleethours/internal/storage/mongo"
	"github.com/goodtune/fleethours/internal/storage/redis"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app holds the connections and components shared by the report-producing
// commands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	events    *mongo.EventStore
	store     *redis.Store
	targets   *identity.Resolver
	locations *identity.Resolver
	generator *report.Generator
	timezone  *time.Location
}

// newApp loads configuration and connects to MongoDB and Redis
func newApp(logOut *os.File) (*app, error) {
	cfg, logger, err := loadConfig(logOut)
	if err != nil {
		return nil, err
	}

	tz, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid report timezone: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	events, err := mongo.Open(cfg.Events.Mongo, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to event store: %w", err)
	}

	logger.Debug().
		Str("redis_host", cfg.Storage.Redis.Host).
		Int("redis_port", cfg.Storage.Redis.Port).
		Str("mongo_database", cfg.Events.Mongo.Database).
		Str("mongo_collection", cfg.Events.Mongo.Collection).
		Msg("Storage initialized")

	cacheConfig := identity.Config{
		CacheSize: cfg.Identity.CacheSize,
		CacheTTL:  parseDuration(cfg.Identity.CacheTTL, 10*time.Minute),
	}
	targets := identity.NewResolver(store.Names(), storage.NameTarget, cacheConfig, logger)
	locations := identity.NewResolver(store.Names(), storage.NameLocation, cacheConfig, logger)

	aggregator := activity.NewAggregator(events, targets, activity.Config{
		FetchConcurrency: cfg.Report.FetchConcurrency,
		FetchTimeout:     parseDuration(cfg.Report.FetchTimeout, 30*time.Second),
	}, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		events:    events,
		store:     store,
		targets:   targets,
		locations: locations,
		generator: report.NewGenerator(aggregator, locations, report.SystemClock(), logger),
		timezone:  tz,
	}, nil
}

// Close releases the event store and Redis connections
func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close event store")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

// loadConfig loads the configuration and installs the global logger
func loadConfig(logOut *os.File) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging, logOut)
	log.Logger = logger
	return cfg, logger, nil
}

// openStorage connects to the Redis backend
func openStorage(cfg config.StorageConfig) (*redis.Store, error) {
	return redis.Open(cfg.Redis)
}

func setupLogger(cfg config.LoggingConfig, out *os.File) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
