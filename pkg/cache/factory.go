package cache

import (
	"fuelops-backend/pkg/redis"
)

// NewSpecCache creates a spec cache backed by the given Redis client.
func NewSpecCache(redisClient *redis.Client, config SpecCacheConfig) SpecCache {
	return NewRedisSpecCache(redisClient, config)
}

// NewDefaultSpecCache creates a spec cache with default configuration.
func NewDefaultSpecCache(redisClient *redis.Client) SpecCache {
	return NewRedisSpecCache(redisClient, DefaultSpecCacheConfig())
}
