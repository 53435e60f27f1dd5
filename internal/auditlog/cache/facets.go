// Package cache provides a Redis-backed read-through cache for facet scans.
// Facet computation touches every row in the time range, so hot dashboards
// benefit from a short-lived cache; staleness is bounded by the TTL.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"gatelog/internal/auditlog"
)

const keyPrefix = "auditlog:facets:"

// RedisFacetCache implements auditlog.FacetCache. All failures degrade to a
// cache miss: the store remains the source of truth.
type RedisFacetCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisFacetCache creates a facet cache with the given TTL.
func NewRedisFacetCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisFacetCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFacetCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisFacetCache) Get(ctx context.Context, key string) (auditlog.Facets, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.DebugContext(ctx, "facet cache get failed", "key", key, "error", err)
		}
		return auditlog.Facets{}, false
	}

	var facets auditlog.Facets
	if err := json.Unmarshal(raw, &facets); err != nil {
		c.logger.DebugContext(ctx, "facet cache entry corrupt", "key", key, "error", err)
		return auditlog.Facets{}, false
	}
	return facets, true
}

func (c *RedisFacetCache) Set(ctx context.Context, key string, facets auditlog.Facets) {
	raw, err := json.Marshal(facets)
	if err != nil {
		c.logger.DebugContext(ctx, "facet cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "facet cache set failed", "key", key, "error", err)
	}
}
