package models

import "time"

// VehicleSpec holds the physical tank attributes for one vehicle as reported
// by the fleet-tracking system. Overridden specs were set manually by a
// manager and are excluded from automatic resync.
type VehicleSpec struct {
	VehicleID      string    `bson:"vehicle_id" json:"vehicleId"`
	TankCapacity   float64   `bson:"tank_capacity" json:"tankCapacity" validate:"required,gt=0"`
	FuelEfficiency float64   `bson:"fuel_efficiency" json:"fuelEfficiency" validate:"required,gt=0"`
	FuelType       string    `bson:"fuel_type" json:"fuelType"`
	Override       bool      `bson:"override" json:"override"`
	FetchedAt      time.Time `bson:"fetched_at" json:"fetchedAt"`
}

// DefaultVehicleSpec is the fallback used when the fleet-tracking system is
// unreachable or returns unusable data.
func DefaultVehicleSpec(vehicleID string) *VehicleSpec {
	return &VehicleSpec{
		VehicleID:      vehicleID,
		TankCapacity:   60,
		FuelEfficiency: 10,
		FuelType:       "diesel",
		FetchedAt:      time.Now(),
	}
}
