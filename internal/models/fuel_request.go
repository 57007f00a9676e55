package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fuel request lifecycle statuses. Rejected, fulfilled and cancelled are
// terminal; no transition ever re-enters pending.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

const (
	UrgencyNormal    = "normal"
	UrgencyUrgent    = "urgent"
	UrgencyEmergency = "emergency"
)

const FuelUnitLiters = "liters"

type FuelRequest struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	VehicleID          string              `bson:"vehicle_id" json:"vehicleId" validate:"required"`
	DriverID           string              `bson:"driver_id" json:"driverId" validate:"required"`
	CurrentFuelLevel   float64             `bson:"current_fuel_level" json:"currentFuelLevel"`
	RequestedAmount    float64             `bson:"requested_amount" json:"requestedAmount" validate:"required,gt=0"`
	ApprovedAmount     *float64            `bson:"approved_amount,omitempty" json:"approvedAmount,omitempty"`
	FuelUnit           string              `bson:"fuel_unit" json:"fuelUnit"`
	Urgency            string              `bson:"urgency" json:"urgency" validate:"omitempty,oneof=normal urgent emergency"`
	Reason             string              `bson:"reason" json:"reason"`
	Location           *Location           `bson:"location,omitempty" json:"location,omitempty"`
	Status             string              `bson:"status" json:"status"`
	RequestTime        time.Time           `bson:"request_time" json:"requestTime"`
	ReviewTime         *time.Time          `bson:"review_time,omitempty" json:"reviewTime,omitempty"`
	ReviewerID         string              `bson:"reviewer_id,omitempty" json:"reviewerId,omitempty"`
	FulfillmentTime    *time.Time          `bson:"fulfillment_time,omitempty" json:"fulfillmentTime,omitempty"`
	Notes              string              `bson:"notes,omitempty" json:"notes,omitempty"`
	ValidationWarnings []ValidationWarning `bson:"validation_warnings" json:"validationWarnings"`
	ManagerSuggestion  float64             `bson:"manager_suggestion" json:"managerSuggestion"`
	CreatedAt          time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time           `bson:"updated_at" json:"updatedAt"`
}

// ValidationWarning is one advisory produced by the validation engine,
// persisted with the request so managers can review it later.
type ValidationWarning struct {
	Type     string `bson:"type" json:"type"`
	Message  string `bson:"message" json:"message"`
	Severity string `bson:"severity" json:"severity"`
}

type Location struct {
	Lat     float64 `bson:"lat" json:"lat"`
	Lng     float64 `bson:"lng" json:"lng"`
	Address string  `bson:"address" json:"address"`
}

// Terminal reports whether the request can accept no further transitions.
func (r *FuelRequest) Terminal() bool {
	switch r.Status {
	case StatusRejected, StatusFulfilled, StatusCancelled:
		return true
	}
	return false
}
