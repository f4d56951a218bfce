// Package redis implements the ephemeral cache adapter over a pooled Redis
// connection. Session records and per-user generation counters live here;
// nothing in this package is durable and callers never assume survival
// across a cache restart.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/cohort/pkg/storage"
)

// Client is the cache adapter. Single-key operations are atomic; any
// connection or timeout failure is classified as the transient
// storage.ErrCacheUnavailable so that session validation can fail closed.
type Client struct {
	client *redis.Client
}

// NewClient creates a cache client from configuration and verifies the
// connection.
func NewClient(cfg storage.Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB >= 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisMaxRetries > 0 {
		opts.MaxRetries = cfg.RedisMaxRetries
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}
	if cfg.RedisPoolWait > 0 {
		opts.PoolTimeout = cfg.RedisPoolWait
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewClientFromRedis wraps an existing go-redis client. Tests use this with
// miniredis.
func NewClientFromRedis(client *redis.Client) *Client {
	return &Client{client: client}
}

// Get returns the value for key, or (nil, nil) on a miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get", err)
	}
	return data, nil
}

// Set stores value under key with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return classify("set", err)
	}
	return nil
}

// Delete removes key; deleting an absent key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return classify("delete", err)
	}
	return nil
}

// Incr atomically increments the integer at key and returns the new value.
// An absent key counts from zero.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, classify("incr", err)
	}
	return n, nil
}

// GetInt returns the integer at key, or (0, nil) when the key is absent.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, classify("get", err)
	}
	return n, nil
}

// Ping checks cache connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Underlying returns the go-redis client for health checks and pool stats.
func (c *Client) Underlying() *redis.Client {
	return c.client
}

// PoolStats returns connection pool statistics.
func (c *Client) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

// classify maps a go-redis failure onto the transient taxonomy. redis.Nil
// never reaches here; everything else is an infrastructure fault.
func classify(op string, err error) error {
	return fmt.Errorf("redis %s failed: %w: %v", op, storage.ErrCacheUnavailable, err)
}

var _ storage.Cache = (*Client)(nil)
