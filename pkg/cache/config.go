package cache

import "time"

// SpecCacheConfig holds TTL values and key layout for the spec cache.
type SpecCacheConfig struct {
	SpecTTL    time.Duration `json:"specTTL"`    // vehicle specs stay fresh for 5 minutes
	GenericTTL time.Duration `json:"genericTTL"` // default for generic entries
	KeyPrefix  string        `json:"keyPrefix"`  // prefix for all cache keys
}

// DefaultSpecCacheConfig returns the default cache configuration.
func DefaultSpecCacheConfig() SpecCacheConfig {
	return SpecCacheConfig{
		SpecTTL:    5 * time.Minute,
		GenericTTL: 2 * time.Minute,
		KeyPrefix:  "fuelops:",
	}
}
