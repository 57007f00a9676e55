package validation

import (
	"fmt"
	"math"

	"fuelops-backend/internal/models"
)

// Verdict severity tiers.
const (
	SeverityNone     = "none"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Warning types attached to a verdict.
const (
	WarningTankCapacity  = "tank_capacity"
	WarningNearCapacity  = "near_capacity"
	WarningTripExcessive = "trip_excessive"
)

// Tuning constants. Fixed for the whole fleet for now; per-fleet
// configurability is a possible future surface.
const (
	// capacityToleranceLiters is the safety margin past the computed free
	// tank volume before a request is hard-blocked.
	capacityToleranceLiters = 5.0
	// tripSafetyBuffer pads the trip fuel requirement by 20%.
	tripSafetyBuffer = 1.2
	// tripExcessiveMultiplier marks requests 50% past the safe amount.
	tripExcessiveMultiplier = 1.5
)

// Trip describes an optional planned trip supplied with a request.
type Trip struct {
	DistanceKm float64 `json:"distanceKm"`
}

// Verdict is the outcome of validating a requested fuel amount against a
// vehicle's physical constraints. Display fields (MaxPossible,
// SuggestedAmount) are rounded to whole liters; Details keeps the raw values.
type Verdict struct {
	Valid           bool                       `json:"valid"`
	Severity        string                     `json:"severity"`
	Warnings        []models.ValidationWarning `json:"warnings"`
	SuggestedAmount float64                    `json:"suggestedAmount"`
	MaxPossible     float64                    `json:"maxPossible"`
	Details         Details                    `json:"details"`
}

// Details carries the unrounded intermediate values for audit.
type Details struct {
	CurrentFuelLiters float64 `json:"currentFuelLiters"`
	MaxPossibleExact  float64 `json:"maxPossibleExact"`
	FuelNeeded        float64 `json:"fuelNeeded,omitempty"`
	SafeAmount        float64 `json:"safeAmount,omitempty"`
}

// Engine turns a raw fuel amount into a bounded advisory decision. It is
// pure computation; callers must reject specs with non-positive fuel
// efficiency before handing them in.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Validate applies the capacity and trip rules in order. A critical capacity
// violation short-circuits: no further checks run and the caller must refuse
// the creation with this verdict as the error payload.
func (e *Engine) Validate(spec *models.VehicleSpec, currentFuelLevel, requestedAmount float64, trip *Trip) Verdict {
	currentFuelLiters := (currentFuelLevel / 100) * spec.TankCapacity
	maxPossible := spec.TankCapacity - currentFuelLiters

	verdict := Verdict{
		Valid:       true,
		Severity:    SeverityNone,
		MaxPossible: math.Round(maxPossible),
		Details: Details{
			CurrentFuelLiters: currentFuelLiters,
			MaxPossibleExact:  maxPossible,
		},
	}

	if requestedAmount > maxPossible+capacityToleranceLiters {
		verdict.Valid = false
		verdict.Severity = SeverityCritical
		verdict.SuggestedAmount = math.Round(maxPossible)
		verdict.Warnings = append(verdict.Warnings, models.ValidationWarning{
			Type:     WarningTankCapacity,
			Message:  fmt.Sprintf("Requested amount exceeds tank capacity; at most %.0fL fit", math.Round(maxPossible)),
			Severity: SeverityCritical,
		})
		return verdict
	}

	if requestedAmount > maxPossible {
		verdict.Warnings = append(verdict.Warnings, models.ValidationWarning{
			Type:     WarningNearCapacity,
			Message:  fmt.Sprintf("Requested amount is within %.0fL of tank capacity", capacityToleranceLiters),
			Severity: SeverityWarning,
		})
	}

	suggested := maxPossible
	if trip != nil && trip.DistanceKm > 0 {
		fuelNeeded := trip.DistanceKm / spec.FuelEfficiency
		safeAmount := fuelNeeded * tripSafetyBuffer
		verdict.Details.FuelNeeded = fuelNeeded
		verdict.Details.SafeAmount = safeAmount

		if requestedAmount > safeAmount*tripExcessiveMultiplier {
			overagePct := math.Round((requestedAmount/safeAmount - 1) * 100)
			verdict.Warnings = append(verdict.Warnings, models.ValidationWarning{
				Type:     WarningTripExcessive,
				Message:  fmt.Sprintf("Requested amount is %.0f%% above the trip requirement of %.0fL", overagePct, math.Ceil(safeAmount)),
				Severity: SeverityWarning,
			})
		}

		suggested = math.Min(maxPossible, math.Ceil(safeAmount))
	}
	verdict.SuggestedAmount = math.Round(suggested)

	if len(verdict.Warnings) > 0 {
		verdict.Severity = SeverityWarning
	}

	return verdict
}
