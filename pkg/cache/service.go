package cache

import (
	"context"
	"time"
)

// CacheService defines the behavior for caching mechanisms.
// Implementations are best-effort: failures surface as misses.
type CacheService interface {
	// Get retrieves a value from the cache
	// Returns value, true if found
	// Returns nil, false if not found
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set adds a value to the cache with a duration
	Set(ctx context.Context, key string, value []byte, duration time.Duration)

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string)
}
