package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon-service/pkg/cache"
	"coupon-service/pkg/logger"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

// NewRedisCache creates a cache shared between service instances.
// All keys are namespaced with keyPrefix.
func NewRedisCache(client redis.UniversalClient, keyPrefix string) cache.CacheService {
	return &redisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WithContext(ctx).Warn().Err(err).Str("key", key).Msg("Redis cache get failed")
		}
		return nil, false
	}
	return b, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, duration time.Duration) {
	if err := c.client.Set(ctx, c.keyPrefix+key, value, duration).Err(); err != nil {
		logger.WithContext(ctx).Warn().Err(err).Str("key", key).Msg("Redis cache set failed")
	}
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		logger.WithContext(ctx).Warn().Err(err).Str("key", key).Msg("Redis cache delete failed")
	}
}
