package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/goodtune/fleethours/internal/config"
	"github.com/goodtune/fleethours/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store keeps display names and report snapshots in Redis. Both share one
// client pool.
type Store struct {
	client  *redis.Client
	names   *nameStore
	reports *reportStore
}

// Open connects to Redis and pings it. The client is closed again if the
// server does not answer within the dial timeout.
func Open(cfg config.RedisConfig) (*Store, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingTimeout := opts.DialTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	return &Store{
		client:  client,
		names:   &nameStore{client: client},
		reports: &reportStore{client: client},
	}, nil
}

// clientOptions maps the storage.redis section onto client options. A zero
// port means Host already carries one.
func clientOptions(cfg config.RedisConfig) (*redis.Options, error) {
	timeouts := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"dial_timeout", cfg.DialTimeout, new(time.Duration)},
		{"read_timeout", cfg.ReadTimeout, new(time.Duration)},
		{"write_timeout", cfg.WriteTimeout, new(time.Duration)},
	}
	for _, t := range timeouts {
		d, err := time.ParseDuration(t.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", t.key, err)
		}
		*t.dst = d
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	return &redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  *timeouts[0].dst,
		ReadTimeout:  *timeouts[1].dst,
		WriteTimeout: *timeouts[2].dst,
	}, nil
}

// Close closes the client pool
func (s *Store) Close() error {
	return s.client.Close()
}

// Names returns the display name store
func (s *Store) Names() storage.NameStore {
	return s.names
}

// Reports returns the report snapshot store
func (s *Store) Reports() storage.ReportStore {
	return s.reports
}
