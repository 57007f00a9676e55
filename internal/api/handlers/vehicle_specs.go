package handlers

import (
	"errors"
	"net/http"

	"fuelops-backend/internal/api/middleware"
	"fuelops-backend/internal/services"
	"fuelops-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type VehicleSpecHandler struct {
	specService *services.VehicleSpecService
	validator   *validator.Validate
}

func NewVehicleSpecHandler(specService *services.VehicleSpecService) *VehicleSpecHandler {
	return &VehicleSpecHandler{
		specService: specService,
		validator:   validator.New(),
	}
}

// GetVehicleSpec returns the spec used for validation, cached or freshly
// synced from the fleet-tracking system
func (h *VehicleSpecHandler) GetVehicleSpec(c *gin.Context) {
	vehicleID := c.Param("id")
	if vehicleID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Vehicle ID is required", nil)
		return
	}

	spec, err := h.specService.GetSpec(c.Request.Context(), vehicleID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve vehicle spec", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicle spec retrieved successfully", spec)
}

// GetVehicleFuelLevel returns the live fuel level reading for a vehicle
func (h *VehicleSpecHandler) GetVehicleFuelLevel(c *gin.Context) {
	vehicleID := c.Param("id")
	if vehicleID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Vehicle ID is required", nil)
		return
	}

	level, err := h.specService.CurrentFuelLevel(c.Request.Context(), vehicleID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve fuel level", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fuel level retrieved successfully", gin.H{
		"vehicleId": vehicleID,
		"fuelLevel": level,
	})
}

// OverrideVehicleSpec replaces a vehicle's spec with manager-entered values
func (h *VehicleSpecHandler) OverrideVehicleSpec(c *gin.Context) {
	vehicleID := c.Param("id")
	if vehicleID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Vehicle ID is required", nil)
		return
	}

	var req struct {
		TankCapacity   float64 `json:"tankCapacity" validate:"required,gt=0"`
		FuelEfficiency float64 `json:"fuelEfficiency" validate:"required,gt=0"`
		FuelType       string  `json:"fuelType" validate:"omitempty,oneof=diesel petrol electric hybrid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	actor := middleware.ActorFromContext(c)
	spec, err := h.specService.Override(c.Request.Context(), actor, vehicleID, req.TankCapacity, req.FuelEfficiency, req.FuelType)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			utils.ErrorResponse(c, http.StatusForbidden, "Failed to override vehicle spec", err)
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to override vehicle spec", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicle spec overridden successfully", spec)
}
