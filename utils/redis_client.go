package utils

import (
	"context"
	"fmt"
	"time"

	"checkin-system/internal/logging"

	"github.com/redis/go-redis/v9"
)

const healthCheckTimeout = 2 * time.Second

// RedisOptions parses a redis:// URL, falling back to a bare host:port, and
// applies the pool settings used by the check-in backend.
func RedisOptions(url string) *redis.Options {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}

	opts.PoolSize = 100
	opts.MinIdleConns = 10
	opts.MaxRetries = 3
	return opts
}

// NewRedisClient connects and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	client := redis.NewClient(RedisOptions(url))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logging.Info().Str("addr", client.Options().Addr).Msg("connected to redis")
	return client, nil
}

func RedisHealthCheck(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
