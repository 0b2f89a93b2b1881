// Package redis is the go-redis/v9 client behind the search result cache.
// It exposes byte values with TTLs, integer counters and pattern deletes,
// and hides redis.Nil behind a found flag.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/config"
)

// scanBatch is the COUNT hint for SCAN and the UNLINK batch size.
const scanBatch = 256

type Client struct {
	rdb redis.UniversalClient
}

// Open connects and checks the server with a PING bounded by 3s.
func Open(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Fetch returns the value at key; found is false when the key is absent.
func (c *Client) Fetch(ctx context.Context, key string) (value []byte, found bool, err error) {
	value, err = c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Store writes value with the given TTL; zero keeps it forever.
func (c *Client) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Counter reads an integer key, treating a missing key as 0.
func (c *Client) Counter(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Bump increments an integer key and returns the new value.
func (c *Client) Bump(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// DeleteMatching unlinks every key matching the glob pattern, in batches,
// and returns how many were removed.
func (c *Client) DeleteMatching(ctx context.Context, pattern string) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Unlink(ctx, keys...).Result()
			removed += n
			if err != nil {
				return removed, fmt.Errorf("unlinking %d keys: %w", len(keys), err)
			}
		}
		if cursor = next; cursor == 0 {
			return removed, nil
		}
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
