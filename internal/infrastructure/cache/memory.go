package cache

import (
	"context"
	"coupon-service/pkg/cache"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a new in-memory cache service
// defaultExpiration: default TTL for items
// cleanupInterval: how often to scan for expired items
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) cache.CacheService {
	return &memoryCache{
		store: gocache.New(defaultExpiration, cleanupInterval),
	}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, found := c.store.Get(key)
	if !found {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, duration time.Duration) {
	// Stored values are copied so callers may reuse their buffers.
	c.store.Set(key, append([]byte(nil), value...), duration)
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.store.Delete(key)
}
