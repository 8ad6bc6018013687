// Package cache provides a Redis-backed cache and the advisory lock the
// email retry sweep uses to avoid overlapping runs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftmarket/driftmarket/config"
)

// Client wraps a Redis connection. A nil *Client (or one whose connection
// failed) degrades to a no-op cache so the app still runs without Redis.
type Client struct {
	rdb *redis.Client
}

// Connect initialises the Redis client and verifies the connection with a
// ping. On failure it returns a degraded (no-op) client and the error so
// the caller can decide to warn or abort.
func Connect(ctx context.Context) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return &Client{}, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Available reports whether a live Redis connection is behind this client.
func (c *Client) Available() bool {
	return c != nil && c.rdb != nil
}

// Get retrieves a cached value by key and unmarshals into dest.
// Returns true on a cache hit, false on miss or error.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) bool {
	if !c.Available() {
		return false
	}

	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false
	}

	return true
}

// Set stores value in Redis under key for the given TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Del removes one or more keys from Redis.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if !c.Available() {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if !c.Available() {
		return nil
	}
	return c.rdb.Close()
}
