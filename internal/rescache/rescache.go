// Package rescache is a redis cache-aside layer for read results. Each
// resource carries a version counter; mutations bump the counters of
// the resources they touch, which shifts every cache key involving them
// and lets stale entries expire on their own TTL.
package rescache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/damiencorpataux/relrest/internal/logger"
)

const (
	resultPrefix  = "relrest:result:"
	versionPrefix = "relrest:version:"
)

// Cache wraps one redis client. A nil Cache or a zero TTL disables
// caching; every method degrades to a miss or a no-op.
type Cache struct {
	RDB *redis.Client
	TTL time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &Cache{RDB: rdb, TTL: ttl}
}

// Key derives the cache key from the request URI, the caller's roles
// and the current version of every involved resource.
func (c *Cache) Key(ctx context.Context, uri string, roles, involved []string) string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(uri)
	sb.WriteByte('\n')
	sb.WriteString(strings.Join(roles, ","))
	for _, resource := range involved {
		version, err := c.RDB.Get(ctx, versionPrefix+resource).Result()
		if err != nil && err != redis.Nil {
			logger.Warn("rescache_version_failed", map[string]any{
				"resource": resource,
				"error":    err.Error(),
			})
		}
		sb.WriteByte('\n')
		sb.WriteString(resource)
		sb.WriteByte('=')
		sb.WriteString(version)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return resultPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached payload for the key, or a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.RDB.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("rescache_get_failed", map[string]any{"error": err.Error()})
		return nil, false
	}
	return payload, true
}

// Set stores the payload under the key. Failures only log: the cache
// never fails a request.
func (c *Cache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil {
		return
	}
	if err := c.RDB.Set(ctx, key, payload, c.TTL).Err(); err != nil {
		logger.Warn("rescache_set_failed", map[string]any{"error": err.Error()})
	}
}

// Invalidate bumps the version counter of each resource, detaching all
// cached results that involve it.
func (c *Cache) Invalidate(ctx context.Context, resources []string) {
	if c == nil {
		return
	}
	for _, resource := range resources {
		if err := c.RDB.Incr(ctx, versionPrefix+resource).Err(); err != nil {
			logger.Warn("rescache_invalidate_failed", map[string]any{
				"resource": resource,
				"error":    err.Error(),
			})
		}
	}
}

// Enabled reports whether the cache participates at all.
func (c *Cache) Enabled() bool { return c != nil }
