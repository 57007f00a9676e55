package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fuelops-backend/internal/models"
	"fuelops-backend/pkg/redis"

	redisClient "github.com/redis/go-redis/v9"
)

// RedisSpecCache implements SpecCache using Redis.
type RedisSpecCache struct {
	rdb    *redisClient.Client
	config SpecCacheConfig
	stats  *cacheStats
	ctx    context.Context
}

// cacheStats tracks cache performance metrics
type cacheStats struct {
	mu          sync.RWMutex
	totalHits   int64
	totalMisses int64
}

// NewRedisSpecCache creates a new Redis-backed spec cache.
func NewRedisSpecCache(client *redis.Client, config SpecCacheConfig) *RedisSpecCache {
	return newRedisSpecCacheWithClient(client.GetClient(), config)
}

func newRedisSpecCacheWithClient(rdb *redisClient.Client, config SpecCacheConfig) *RedisSpecCache {
	return &RedisSpecCache{
		rdb:    rdb,
		config: config,
		stats:  &cacheStats{},
		ctx:    context.Background(),
	}
}

// GetSpec retrieves a vehicle spec from cache. A miss is (nil, nil).
func (r *RedisSpecCache) GetSpec(vehicleID string) (*models.VehicleSpec, error) {
	key := r.buildKey("spec", vehicleID)

	data, err := r.rdb.Get(r.ctx, key).Result()
	if err != nil {
		if err == redisClient.Nil {
			r.recordMiss()
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get spec from cache: %w", err)
	}

	var spec models.VehicleSpec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spec data: %w", err)
	}

	r.recordHit()
	return &spec, nil
}

// SetSpec stores a vehicle spec. ttl zero keeps the entry until invalidated.
func (r *RedisSpecCache) SetSpec(vehicleID string, spec *models.VehicleSpec, ttl time.Duration) error {
	key := r.buildKey("spec", vehicleID)

	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec data: %w", err)
	}

	if err := r.rdb.Set(r.ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set spec in cache: %w", err)
	}
	return nil
}

// Invalidate removes a vehicle's spec from cache.
func (r *RedisSpecCache) Invalidate(vehicleID string) error {
	key := r.buildKey("spec", vehicleID)
	if err := r.rdb.Del(r.ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate spec: %w", err)
	}
	return nil
}

// Get retrieves a generic value from cache.
func (r *RedisSpecCache) Get(key string, dest interface{}) error {
	cacheKey := r.buildKey("generic", key)

	data, err := r.rdb.Get(r.ctx, cacheKey).Result()
	if err != nil {
		if err == redisClient.Nil {
			r.recordMiss()
			return nil
		}
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.recordHit()
	return nil
}

// Set stores a generic value in cache.
func (r *RedisSpecCache) Set(key string, value interface{}, ttl time.Duration) error {
	cacheKey := r.buildKey("generic", key)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := r.rdb.Set(r.ctx, cacheKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes a generic value from cache.
func (r *RedisSpecCache) Delete(key string) error {
	cacheKey := r.buildKey("generic", key)
	if err := r.rdb.Del(r.ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// GetCacheStats returns hit/miss metrics.
func (r *RedisSpecCache) GetCacheStats() CacheStats {
	r.stats.mu.RLock()
	defer r.stats.mu.RUnlock()

	total := r.stats.totalHits + r.stats.totalMisses
	stats := CacheStats{
		TotalHits:   r.stats.totalHits,
		TotalMisses: r.stats.totalMisses,
	}
	if total > 0 {
		stats.HitRate = float64(r.stats.totalHits) / float64(total)
		stats.MissRate = float64(r.stats.totalMisses) / float64(total)
	}
	return stats
}

// HealthCheck pings Redis.
func (r *RedisSpecCache) HealthCheck() error {
	ctx, cancel := context.WithTimeout(r.ctx, 3*time.Second)
	defer cancel()
	return r.rdb.Ping(ctx).Err()
}

// Close is a no-op; the shared Redis client owns the connection.
func (r *RedisSpecCache) Close() error {
	return nil
}

func (r *RedisSpecCache) buildKey(kind, key string) string {
	return fmt.Sprintf("%s%s:%s", r.config.KeyPrefix, kind, key)
}

func (r *RedisSpecCache) recordHit() {
	r.stats.mu.Lock()
	r.stats.totalHits++
	r.stats.mu.Unlock()
}

func (r *RedisSpecCache) recordMiss() {
	r.stats.mu.Lock()
	r.stats.totalMisses++
	r.stats.mu.Unlock()
}
