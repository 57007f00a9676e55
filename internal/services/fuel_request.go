package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fuelops-backend/internal/events"
	"fuelops-backend/internal/models"
	"fuelops-backend/internal/repository"
	"fuelops-backend/internal/validation"

	"go.mongodb.org/mongo-driver/bson"
)

// RequestStore is the persistence surface the state machine drives. The
// Mongo repository implements it; tests substitute an in-memory store.
type RequestStore interface {
	Create(request *models.FuelRequest) (*models.FuelRequest, error)
	FindByID(id string) (*models.FuelRequest, error)
	FindAll(filter repository.RequestFilter) ([]*models.FuelRequest, error)
	ApplyTransition(id string, fromStatuses []string, set bson.M) (*models.FuelRequest, error)
	StatusCounts() (map[string]int64, float64, error)
}

// EventPublisher receives one lifecycle event per committed transition.
type EventPublisher interface {
	Publish(ev models.LifecycleEvent, channels ...string)
}

// SpecSource supplies vehicle tank attributes and live fuel levels.
type SpecSource interface {
	GetSpec(ctx context.Context, vehicleID string) (*models.VehicleSpec, error)
	CurrentFuelLevel(ctx context.Context, vehicleID string) (float64, error)
}

type CreateFuelRequestInput struct {
	VehicleID       string           `json:"vehicleId" validate:"required"`
	RequestedAmount float64          `json:"requestedAmount" validate:"required,gt=0"`
	Reason          string           `json:"reason,omitempty"`
	Urgency         string           `json:"urgency,omitempty" validate:"omitempty,oneof=normal urgent emergency"`
	TripDistanceKm  float64          `json:"tripDistanceKm,omitempty" validate:"omitempty,gt=0"`
	Location        *models.Location `json:"location,omitempty"`
}

// FuelRequestService owns every mutation of a fuel request. Mutations to
// one record are serialized through a per-record lock; the repository's
// status-guarded update backs that up at the database level. Every
// committed transition publishes exactly one event, after the write.
type FuelRequestService struct {
	store  RequestStore
	specs  SpecSource
	engine *validation.Engine
	router EventPublisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFuelRequestService(store RequestStore, specs SpecSource, router EventPublisher) *FuelRequestService {
	return &FuelRequestService{
		store:  store,
		specs:  specs,
		engine: validation.NewEngine(),
		router: router,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockRecord serializes mutations on one request id. Different ids proceed
// fully in parallel.
func (s *FuelRequestService) lockRecord(id string) func() {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Create validates the requested amount against the vehicle's physical
// constraints and persists a pending request. A critical verdict blocks the
// creation: nothing is persisted and no event is emitted.
func (s *FuelRequestService) Create(ctx context.Context, actor models.Actor, input *CreateFuelRequestInput) (*models.FuelRequest, error) {
	if actor.Role != models.RoleDriver {
		return nil, ErrForbidden
	}

	spec, err := s.specs.GetSpec(ctx, input.VehicleID)
	if err != nil {
		return nil, err
	}
	level, err := s.specs.CurrentFuelLevel(ctx, input.VehicleID)
	if err != nil {
		return nil, err
	}

	var trip *validation.Trip
	if input.TripDistanceKm > 0 {
		trip = &validation.Trip{DistanceKm: input.TripDistanceKm}
	}

	verdict := s.engine.Validate(spec, level, input.RequestedAmount, trip)
	if !verdict.Valid {
		return nil, &ValidationBlockedError{Verdict: verdict}
	}

	urgency := input.Urgency
	if urgency == "" {
		urgency = models.UrgencyNormal
	}

	now := time.Now()
	request := &models.FuelRequest{
		VehicleID:          input.VehicleID,
		DriverID:           actor.ID,
		CurrentFuelLevel:   level,
		RequestedAmount:    input.RequestedAmount,
		FuelUnit:           models.FuelUnitLiters,
		Urgency:            urgency,
		Reason:             input.Reason,
		Location:           input.Location,
		Status:             models.StatusPending,
		RequestTime:        now,
		ValidationWarnings: verdict.Warnings,
		ManagerSuggestion:  verdict.SuggestedAmount,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if request.ValidationWarnings == nil {
		request.ValidationWarnings = []models.ValidationWarning{}
	}

	created, err := s.store.Create(request)
	if err != nil {
		return nil, err
	}

	s.publish(created, models.ChangeCreated, "", actor.ID, "")
	return created, nil
}

// Approve moves a pending request to approved. The approved amount defaults
// to the requested amount and is deliberately not re-validated against tank
// capacity: managers may override the advisory bound.
func (s *FuelRequestService) Approve(ctx context.Context, actor models.Actor, id string, approvedAmount *float64, notes string) (*models.FuelRequest, error) {
	if !actor.IsManager() {
		return nil, ErrForbidden
	}

	unlock := s.lockRecord(id)
	defer unlock()

	current, err := s.findRequest(id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusPending {
		return nil, &InvalidTransitionError{Current: current.Status, Attempted: models.StatusApproved}
	}

	amount := current.RequestedAmount
	if approvedAmount != nil {
		if *approvedAmount < 0 {
			return nil, fmt.Errorf("approved amount must be non-negative")
		}
		amount = *approvedAmount
	}

	now := time.Now()
	updated, err := s.applyTransition(id, []string{models.StatusPending}, models.StatusApproved, bson.M{
		"status":          models.StatusApproved,
		"approved_amount": amount,
		"review_time":     now,
		"reviewer_id":     actor.ID,
		"notes":           notes,
	})
	if err != nil {
		return nil, err
	}

	s.publish(updated, models.ChangeApproved, current.Status, actor.ID, "")
	return updated, nil
}

// Reject moves a pending request to rejected. Notes default when omitted so
// the driver always sees a reason.
func (s *FuelRequestService) Reject(ctx context.Context, actor models.Actor, id string, notes string) (*models.FuelRequest, error) {
	if !actor.IsManager() {
		return nil, ErrForbidden
	}

	unlock := s.lockRecord(id)
	defer unlock()

	current, err := s.findRequest(id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusPending {
		return nil, &InvalidTransitionError{Current: current.Status, Attempted: models.StatusRejected}
	}

	if notes == "" {
		notes = "Rejected by fleet manager"
	}

	now := time.Now()
	updated, err := s.applyTransition(id, []string{models.StatusPending}, models.StatusRejected, bson.M{
		"status":      models.StatusRejected,
		"review_time": now,
		"reviewer_id": actor.ID,
		"notes":       notes,
	})
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Your fuel request was rejected: %s", notes)
	s.publish(updated, models.ChangeRejected, current.Status, actor.ID, message)
	return updated, nil
}

// Cancel is reserved for the owning driver and is valid while the request
// is pending or approved.
func (s *FuelRequestService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.FuelRequest, error) {
	unlock := s.lockRecord(id)
	defer unlock()

	current, err := s.findRequest(id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleDriver || current.DriverID != actor.ID {
		return nil, ErrForbidden
	}
	if current.Status != models.StatusPending && current.Status != models.StatusApproved {
		return nil, &InvalidTransitionError{Current: current.Status, Attempted: models.StatusCancelled}
	}

	updated, err := s.applyTransition(id, []string{models.StatusPending, models.StatusApproved}, models.StatusCancelled, bson.M{
		"status": models.StatusCancelled,
	})
	if err != nil {
		return nil, err
	}

	s.publish(updated, models.ChangeCancelled, current.Status, actor.ID, "")
	return updated, nil
}

// Fulfill marks an approved request as dispensed.
func (s *FuelRequestService) Fulfill(ctx context.Context, actor models.Actor, id string) (*models.FuelRequest, error) {
	if !actor.IsManager() {
		return nil, ErrForbidden
	}

	unlock := s.lockRecord(id)
	defer unlock()

	current, err := s.findRequest(id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusApproved {
		return nil, &InvalidTransitionError{Current: current.Status, Attempted: models.StatusFulfilled}
	}

	now := time.Now()
	updated, err := s.applyTransition(id, []string{models.StatusApproved}, models.StatusFulfilled, bson.M{
		"status":           models.StatusFulfilled,
		"fulfillment_time": now,
	})
	if err != nil {
		return nil, err
	}

	s.publish(updated, models.ChangeFulfilled, current.Status, actor.ID, "")
	return updated, nil
}

// List returns requests visible to the actor: drivers see only their own,
// managers see everything matching the filter.
func (s *FuelRequestService) List(ctx context.Context, actor models.Actor, filter repository.RequestFilter) ([]*models.FuelRequest, error) {
	if !actor.IsManager() {
		filter.DriverID = actor.ID
	}
	return s.store.FindAll(filter)
}

// Get fetches a single request, enforcing driver ownership.
func (s *FuelRequestService) Get(ctx context.Context, actor models.Actor, id string) (*models.FuelRequest, error) {
	request, err := s.findRequest(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsManager() && request.DriverID != actor.ID {
		return nil, ErrForbidden
	}
	return request, nil
}

// GetValidationDetails re-runs the validation engine against the current
// spec and fuel level, for display next to the stored creation-time verdict.
func (s *FuelRequestService) GetValidationDetails(ctx context.Context, actor models.Actor, id string) (*validation.Verdict, error) {
	request, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	spec, err := s.specs.GetSpec(ctx, request.VehicleID)
	if err != nil {
		return nil, err
	}
	level, err := s.specs.CurrentFuelLevel(ctx, request.VehicleID)
	if err != nil {
		return nil, err
	}

	verdict := s.engine.Validate(spec, level, request.RequestedAmount, nil)
	return &verdict, nil
}

// Stats summarises request counts per status and approved liters. Manager
// only.
func (s *FuelRequestService) Stats(ctx context.Context, actor models.Actor) (map[string]interface{}, error) {
	if !actor.IsManager() {
		return nil, ErrForbidden
	}

	counts, approvedLiters, err := s.store.StatusCounts()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"countsByStatus": counts,
		"approvedLiters": approvedLiters,
	}, nil
}

func (s *FuelRequestService) findRequest(id string) (*models.FuelRequest, error) {
	request, err := s.store.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return request, nil
}

func (s *FuelRequestService) applyTransition(id string, fromStatuses []string, attempted string, set bson.M) (*models.FuelRequest, error) {
	updated, err := s.store.ApplyTransition(id, fromStatuses, set)
	if err != nil {
		if errors.Is(err, repository.ErrNoTransitionMatch) {
			// Lost a race outside our lock scope (e.g. another process);
			// report the freshest status we can.
			if current, findErr := s.store.FindByID(id); findErr == nil {
				return nil, &InvalidTransitionError{Current: current.Status, Attempted: attempted}
			}
			return nil, &InvalidTransitionError{Current: "unknown", Attempted: attempted}
		}
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// publish emits the lifecycle event for a committed transition. The write
// has already been acknowledged, so subscribers can always re-read at least
// this state.
func (s *FuelRequestService) publish(request *models.FuelRequest, changeType, previousStatus, actorID, message string) {
	ev := models.LifecycleEvent{
		Request:        *request,
		ChangeType:     changeType,
		PreviousStatus: previousStatus,
		NewStatus:      request.Status,
		ActorID:        actorID,
		OccurredAt:     time.Now(),
		Message:        message,
	}
	s.router.Publish(ev, events.ChannelsFor(ev)...)
}
