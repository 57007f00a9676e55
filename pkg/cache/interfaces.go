package cache

import (
	"time"

	"fuelops-backend/internal/models"
)

// SpecCache stores vehicle specs fetched from the fleet-tracking system.
// A ttl of zero persists the entry until it is explicitly invalidated,
// which is how manager overrides survive resync.
type SpecCache interface {
	// GetSpec returns (nil, nil) on a cache miss.
	GetSpec(vehicleID string) (*models.VehicleSpec, error)
	SetSpec(vehicleID string, spec *models.VehicleSpec, ttl time.Duration) error
	Invalidate(vehicleID string) error

	// Generic operations
	Get(key string, dest interface{}) error
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error

	// Statistics and health
	GetCacheStats() CacheStats
	HealthCheck() error
	Close() error
}

// CacheStats provides cache performance metrics
type CacheStats struct {
	HitRate     float64 `json:"hitRate"`
	MissRate    float64 `json:"missRate"`
	TotalHits   int64   `json:"totalHits"`
	TotalMisses int64   `json:"totalMisses"`
}
