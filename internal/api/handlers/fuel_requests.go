package handlers

import (
	"errors"
	"net/http"

	"fuelops-backend/internal/api/middleware"
	"fuelops-backend/internal/repository"
	"fuelops-backend/internal/services"
	"fuelops-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FuelRequestHandler struct {
	fuelRequestService *services.FuelRequestService
	validator          *validator.Validate
}

func NewFuelRequestHandler(fuelRequestService *services.FuelRequestService) *FuelRequestHandler {
	return &FuelRequestHandler{
		fuelRequestService: fuelRequestService,
		validator:          validator.New(),
	}
}

// CreateFuelRequest creates a new fuel request for the authenticated driver
func (h *FuelRequestHandler) CreateFuelRequest(c *gin.Context) {
	var req services.CreateFuelRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	actor := middleware.ActorFromContext(c)
	request, err := h.fuelRequestService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.respondServiceError(c, "Failed to create fuel request", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Fuel request created successfully", request)
}

// GetFuelRequests lists fuel requests visible to the authenticated user
func (h *FuelRequestHandler) GetFuelRequests(c *gin.Context) {
	filter := repository.RequestFilter{
		Status:    c.Query("status"),
		VehicleID: c.Query("vehicleId"),
		DriverID:  c.Query("driverId"),
	}

	actor := middleware.ActorFromContext(c)
	requests, err := h.fuelRequestService.List(c.Request.Context(), actor, filter)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to retrieve fuel requests", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fuel requests retrieved successfully", requests)
}

// GetFuelRequest retrieves a single fuel request by ID
func (h *FuelRequestHandler) GetFuelRequest(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Request ID is required", nil)
		return
	}

	actor := middleware.ActorFromContext(c)
	request, err := h.fuelRequestService.Get(c.Request.Context(), actor, requestID)
	if err != nil {
		h.respondServiceError(c, "Failed to retrieve fuel request", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fuel request retrieved successfully", request)
}

// ApproveFuelRequest approves a pending fuel request
func (h *FuelRequestHandler) ApproveFuelRequest(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Request ID is required", nil)
		return
	}

	// Body is optional: an empty approval takes the requested amount.
	var req struct {
		ApprovedAmount *float64 `json:"approvedAmount" validate:"omitempty,gt=0"`
		Notes          string   `json:"notes"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		if err := h.validator.Struct(&req); err != nil {
			utils.ValidationErrorResponse(c, err)
			return
		}
	}

	actor := middleware.ActorFromContext(c)
	request, err := h.fuelRequestService.Approve(c.Request.Context(), actor, requestID, req.ApprovedAmount, req.Notes)
	if err != nil {
		h.respondServiceError(c, "Failed to approve fuel request", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fuel request approved successfully", request)
}

// RejectFuelRequest rejects a pending fuel request
func (h *FuelRequestHandler) RejectFuelRequest(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Request ID is required", nil)
		return
	}

	// Body is optional: missing notes fall back to a default reason.
	var req struct {
		Notes string `json:"notes"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
			return
		}
	}

	actor := middleware.ActorFromContext(c)
	request, err := h.fuelRequestService.Reject(c.Request.Context(), actor, requestID, req.Notes)
	if err != nil {
		h.respondServiceError(c, "Failed to reject fuel request", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fuel request rejected successfully", request)
}

// CancelFuelRequest cancels the driver's own pending or approved request
func (h *FuelRequestHandler) CancelFuelRequest(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Request ID is required", nil)
		return
	}

	actor := middleware.ActorFromContext(c)
	request, err := h.fuelRequestService.Cancel(c.Request.Context(), actor, requestID)
	if err != nil {
		h.respondServiceError(c, "Failed to cancel fuel request", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fuel request cancelled successfully", request)
}

// FulfillFuelRequest marks an approved request as dispensed
func (h *FuelRequestHandler) FulfillFuelRequest(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Request ID is required", nil)
		return
	}

	actor := middleware.ActorFromContext(c)
	request, err := h.fuelRequestService.Fulfill(c.Request.Context(), actor, requestID)
	if err != nil {
		h.respondServiceError(c, "Failed to fulfill fuel request", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fuel request fulfilled successfully", request)
}

// GetValidationDetails re-runs validation for a request against current data
func (h *FuelRequestHandler) GetValidationDetails(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Request ID is required", nil)
		return
	}

	actor := middleware.ActorFromContext(c)
	verdict, err := h.fuelRequestService.GetValidationDetails(c.Request.Context(), actor, requestID)
	if err != nil {
		h.respondServiceError(c, "Failed to compute validation details", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Validation details computed successfully", verdict)
}

// GetFuelRequestStats summarises request counts and approved liters
func (h *FuelRequestHandler) GetFuelRequestStats(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	stats, err := h.fuelRequestService.Stats(c.Request.Context(), actor)
	if err != nil {
		h.respondServiceError(c, "Failed to retrieve fuel request stats", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fuel request stats retrieved successfully", stats)
}

// respondServiceError maps service-level errors onto HTTP status codes. A
// blocked validation returns the full verdict so clients can display the
// computed maximum.
func (h *FuelRequestHandler) respondServiceError(c *gin.Context, message string, err error) {
	var blocked *services.ValidationBlockedError
	var invalid *services.InvalidTransitionError

	switch {
	case errors.As(err, &blocked):
		c.JSON(http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: blocked.Error(),
			Data:    blocked.Verdict,
		})
	case errors.As(err, &invalid):
		utils.ErrorResponse(c, http.StatusConflict, message, err)
	case errors.Is(err, services.ErrForbidden):
		utils.ErrorResponse(c, http.StatusForbidden, message, err)
	case errors.Is(err, services.ErrNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, message, err)
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}
