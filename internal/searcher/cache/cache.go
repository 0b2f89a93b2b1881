// Package cache memoises search responses in Redis. Keys embed a
// generation counter, so invalidation is a single INCR; stale entries age
// out through their TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/redis"
)

const (
	keyPrefix     = "search:"
	generationKey = "search-generation"
)

// Backend is the Redis surface the cache uses.
type Backend interface {
	Fetch(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Counter(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) (int64, error)
	DeleteMatching(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	client  Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(client Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

var (
	_ search.ResultCache = (*QueryCache)(nil)
	_ Backend            = (*pkgredis.Client)(nil)
)

// Get looks q up under the current generation.
func (c *QueryCache) Get(ctx context.Context, q search.Query) (search.Response, bool) {
	key, err := c.buildKey(ctx, q)
	if err != nil {
		c.logger.Error("cache generation lookup failed", "error", err)
		c.miss()
		return search.Response{}, false
	}
	return c.get(ctx, key)
}

func (c *QueryCache) get(ctx context.Context, key string) (search.Response, bool) {
	data, found, err := c.client.Fetch(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if !found {
		c.miss()
		return search.Response{}, false
	}
	var resp search.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return search.Response{}, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return resp, true
}

func (c *QueryCache) set(ctx context.Context, key string, resp search.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Store(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for q, or computes and stores
// it. Concurrent misses on one key share a single computation. An error
// is returned only when the generation counter cannot be read.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q search.Query,
	computeFn func() (search.Response, error),
) (search.Response, bool, error) {
	key, err := c.buildKey(ctx, q)
	if err != nil {
		c.miss()
		return search.Response{}, false, err
	}
	if resp, ok := c.get(ctx, key); ok {
		return resp, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return search.Response{}, false, err
	}
	return val.(search.Response), false, nil
}

// Invalidate retires every cached response by bumping the generation.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Bump(ctx, generationKey)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Debug("cache invalidated", "generation", gen)
	return nil
}

// Purge deletes every cached response.
func (c *QueryCache) Purge(ctx context.Context) error {
	deleted, err := c.client.DeleteMatching(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}
	c.logger.Info("cache purged", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) buildKey(ctx context.Context, q search.Query) (string, error) {
	gen, err := c.client.Counter(ctx, generationKey)
	if err != nil {
		return "", err
	}
	raw := fmt.Sprintf("%d|%s", gen, normalizeQuery(q))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%d:%x", keyPrefix, gen, hash[:16]), nil
}

// normalizeQuery renders q canonically: whitespace collapsed and filters
// sorted. Case is kept because upper-case AND, OR and NOT are operators.
func normalizeQuery(q search.Query) string {
	filters := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		filters = append(filters, fmt.Sprintf("%s:%s:%v", f.Field, f.Operator, f.Value))
	}
	sort.Strings(filters)
	parts := []string{
		strings.Join(strings.Fields(q.Text), " "),
		string(q.Scope),
		string(q.Operator),
		q.SortBy,
		q.SortOrder,
		"limit=" + strconv.Itoa(q.Limit),
		"offset=" + strconv.Itoa(q.Offset),
	}
	if len(filters) > 0 {
		parts = append(parts, "filters="+strings.Join(filters, ","))
	}
	return strings.Join(parts, "|")
}
