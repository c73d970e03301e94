// Package cache is the optional TTL result cache behind core.Cache. It is
// best-effort: entries vanish at their deadline and eviction never signals
// the caller.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// TTLCache adapts patrickmn/go-cache to the core.Cache contract.
type TTLCache struct {
	inner      *gocache.Cache
	defaultTTL time.Duration
}

var _ core.Cache = (*TTLCache)(nil)

// New creates a cache with the given default TTL in seconds. Expired entries
// are swept at twice the default TTL.
func New(defaultTTLSeconds int) *TTLCache {
	ttl := time.Duration(defaultTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TTLCache{
		inner:      gocache.New(ttl, 2*ttl),
		defaultTTL: ttl,
	}
}

// Get returns a live entry.
func (c *TTLCache) Get(key string) (any, bool) {
	return c.inner.Get(key)
}

// Set stores an entry. ttlSeconds <= 0 uses the default TTL.
func (c *TTLCache) Set(key string, value any, ttlSeconds int) {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.inner.Set(key, value, ttl)
}

// Flush drops every entry. Used when configuration reloads switch targets.
func (c *TTLCache) Flush() {
	c.inner.Flush()
}
