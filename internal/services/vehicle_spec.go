package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"fuelops-backend/internal/models"
	"fuelops-backend/pkg/cache"
)

// SpecProvider is the external fleet-tracking system. Lookups are bounded
// by the caller's context; a timeout is recovered locally with the default
// spec rather than surfaced as a hard failure.
type SpecProvider interface {
	FetchSpec(ctx context.Context, vehicleID string) (*models.VehicleSpec, error)
	FetchFuelLevel(ctx context.Context, vehicleID string) (*float64, error)
}

// HTTPSpecProvider talks to the fleet-tracking system's REST API.
type HTTPSpecProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSpecProvider(baseURL string, timeout time.Duration) *HTTPSpecProvider {
	return &HTTPSpecProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPSpecProvider) FetchSpec(ctx context.Context, vehicleID string) (*models.VehicleSpec, error) {
	url := fmt.Sprintf("%s/vehicles/%s/spec", p.baseURL, vehicleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("vehicle %s not known to fleet tracking", vehicleID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spec lookup for %s returned status %d", vehicleID, resp.StatusCode)
	}

	var spec models.VehicleSpec
	if err := json.NewDecoder(resp.Body).Decode(&spec); err != nil {
		return nil, err
	}
	spec.VehicleID = vehicleID
	return &spec, nil
}

func (p *HTTPSpecProvider) FetchFuelLevel(ctx context.Context, vehicleID string) (*float64, error) {
	url := fmt.Sprintf("%s/vehicles/%s/fuel-level", p.baseURL, vehicleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fuel level lookup for %s returned status %d", vehicleID, resp.StatusCode)
	}

	var payload struct {
		FuelLevel *float64 `json:"fuelLevel"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.FuelLevel, nil
}

// VehicleSpecService fronts the provider with a TTL cache. Manager overrides
// are written without expiry and skipped by resync until invalidated.
type VehicleSpecService struct {
	provider SpecProvider
	cache    cache.SpecCache
	cacheTTL time.Duration
	timeout  time.Duration
}

func NewVehicleSpecService(provider SpecProvider, specCache cache.SpecCache, timeout time.Duration) *VehicleSpecService {
	return &VehicleSpecService{
		provider: provider,
		cache:    specCache,
		cacheTTL: cache.DefaultSpecCacheConfig().SpecTTL,
		timeout:  timeout,
	}
}

// GetSpec returns the cached spec when fresh, otherwise refreshes from the
// provider. Provider failure or unusable data (non-positive capacity or
// efficiency) falls back to the default spec, which is not cached so a
// recovered provider is picked up on the next call.
func (s *VehicleSpecService) GetSpec(ctx context.Context, vehicleID string) (*models.VehicleSpec, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSpec(vehicleID)
		if err != nil {
			log.Printf("spec cache read failed for %s: %v", vehicleID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	spec, err := s.provider.FetchSpec(fetchCtx, vehicleID)
	if err != nil {
		log.Printf("spec provider lookup failed for %s, using default spec: %v", vehicleID, err)
		return models.DefaultVehicleSpec(vehicleID), nil
	}
	if spec.TankCapacity <= 0 || spec.FuelEfficiency <= 0 {
		log.Printf("spec provider returned unusable spec for %s (capacity=%.1f efficiency=%.1f), using default",
			vehicleID, spec.TankCapacity, spec.FuelEfficiency)
		return models.DefaultVehicleSpec(vehicleID), nil
	}

	spec.FetchedAt = time.Now()
	if s.cache != nil {
		if err := s.cache.SetSpec(vehicleID, spec, s.cacheTTL); err != nil {
			log.Printf("failed to cache spec for %s: %v", vehicleID, err)
		}
	}
	return spec, nil
}

// CurrentFuelLevel returns the live fuel percentage. An unknown level reads
// as 0%, the most permissive assumption for the advisory capacity check.
func (s *VehicleSpecService) CurrentFuelLevel(ctx context.Context, vehicleID string) (float64, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	level, err := s.provider.FetchFuelLevel(fetchCtx, vehicleID)
	if err != nil {
		log.Printf("fuel level lookup failed for %s, assuming empty tank: %v", vehicleID, err)
		return 0, nil
	}
	if level == nil {
		return 0, nil
	}
	return *level, nil
}

// Override replaces the spec for a vehicle with manager-entered values. The
// cached entry is invalidated before the write, and the override is stored
// without expiry so automatic resync never replaces it.
func (s *VehicleSpecService) Override(ctx context.Context, actor models.Actor, vehicleID string, tankCapacity, fuelEfficiency float64, fuelType string) (*models.VehicleSpec, error) {
	if !actor.IsManager() {
		return nil, ErrForbidden
	}
	if tankCapacity <= 0 || fuelEfficiency <= 0 {
		return nil, fmt.Errorf("tank capacity and fuel efficiency must be positive")
	}

	spec := &models.VehicleSpec{
		VehicleID:      vehicleID,
		TankCapacity:   tankCapacity,
		FuelEfficiency: fuelEfficiency,
		FuelType:       fuelType,
		Override:       true,
		FetchedAt:      time.Now(),
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(vehicleID); err != nil {
			return nil, fmt.Errorf("failed to invalidate cached spec: %w", err)
		}
		if err := s.cache.SetSpec(vehicleID, spec, 0); err != nil {
			return nil, fmt.Errorf("failed to store overridden spec: %w", err)
		}
	}
	return spec, nil
}
