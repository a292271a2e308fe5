// Package rating aggregates review scores per provider and caches the
// result in Redis. Submissions invalidate the cache so the next read
// recomputes.
package rating

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

type Summary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Round1 rounds to one decimal, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Cache is a best-effort layer over the review table aggregate. A nil
// Redis client or any Redis failure degrades to cache misses.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

func key(providerID string) string {
	return "rating:" + providerID
}

func (c *Cache) Get(ctx context.Context, providerID string) (Summary, bool) {
	if c.rdb == nil {
		return Summary{}, false
	}
	raw, err := c.rdb.Get(ctx, key(providerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("rating cache get failed", "error", err)
		}
		return Summary{}, false
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, false
	}
	return s, true
}

func (c *Cache) Set(ctx context.Context, providerID string, s Summary) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(providerID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("rating cache set failed", "error", err)
	}
}

func (c *Cache) Invalidate(ctx context.Context, providerID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(providerID)).Err(); err != nil {
		c.logger.Warn("rating cache invalidate failed", "error", err)
	}
}
