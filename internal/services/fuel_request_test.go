package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fuelops-backend/internal/events"
	"fuelops-backend/internal/models"
	"fuelops-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory RequestStore with the same transition-guard
// semantics as the Mongo repository.
type memStore struct {
	mu   sync.Mutex
	byID map[string]*models.FuelRequest
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]*models.FuelRequest)}
}

func (m *memStore) Create(request *models.FuelRequest) (*models.FuelRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request.ID = primitive.NewObjectID()
	clone := *request
	m.byID[request.ID.Hex()] = &clone
	return request, nil
}

func (m *memStore) FindByID(id string) (*models.FuelRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	clone := *request
	return &clone, nil
}

func (m *memStore) FindAll(filter repository.RequestFilter) ([]*models.FuelRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.FuelRequest
	for _, request := range m.byID {
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		if filter.VehicleID != "" && request.VehicleID != filter.VehicleID {
			continue
		}
		if filter.DriverID != "" && request.DriverID != filter.DriverID {
			continue
		}
		clone := *request
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) ApplyTransition(id string, fromStatuses []string, set bson.M) (*models.FuelRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}

	matched := false
	for _, status := range fromStatuses {
		if request.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return nil, repository.ErrNoTransitionMatch
	}

	for key, value := range set {
		switch key {
		case "status":
			request.Status = value.(string)
		case "approved_amount":
			amount := value.(float64)
			request.ApprovedAmount = &amount
		case "review_time":
			ts := value.(time.Time)
			request.ReviewTime = &ts
		case "reviewer_id":
			request.ReviewerID = value.(string)
		case "notes":
			request.Notes = value.(string)
		case "fulfillment_time":
			ts := value.(time.Time)
			request.FulfillmentTime = &ts
		case "updated_at":
			request.UpdatedAt = value.(time.Time)
		}
	}

	clone := *request
	return &clone, nil
}

func (m *memStore) StatusCounts() (map[string]int64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	var liters float64
	for _, request := range m.byID {
		counts[request.Status]++
		if request.ApprovedAmount != nil &&
			(request.Status == models.StatusApproved || request.Status == models.StatusFulfilled) {
			liters += *request.ApprovedAmount
		}
	}
	return counts, liters, nil
}

type fakeSpecs struct {
	spec  *models.VehicleSpec
	level float64
}

func (f *fakeSpecs) GetSpec(ctx context.Context, vehicleID string) (*models.VehicleSpec, error) {
	clone := *f.spec
	clone.VehicleID = vehicleID
	return &clone, nil
}

func (f *fakeSpecs) CurrentFuelLevel(ctx context.Context, vehicleID string) (float64, error) {
	return f.level, nil
}

type publishedEvent struct {
	event    models.LifecycleEvent
	channels []string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ev models.LifecycleEvent, channels ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{event: ev, channels: channels})
}

func (p *recordingPublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

var (
	driver      = models.Actor{ID: "driver-1", Role: models.RoleDriver}
	otherDriver = models.Actor{ID: "driver-2", Role: models.RoleDriver}
	manager     = models.Actor{ID: "manager-1", Role: models.RoleManager}
)

func newTestService() (*FuelRequestService, *memStore, *recordingPublisher) {
	store := newMemStore()
	publisher := &recordingPublisher{}
	specs := &fakeSpecs{
		spec:  &models.VehicleSpec{TankCapacity: 60, FuelEfficiency: 10, FuelType: "diesel"},
		level: 50,
	}
	return NewFuelRequestService(store, specs, publisher), store, publisher
}

func createPending(t *testing.T, svc *FuelRequestService, amount float64) *models.FuelRequest {
	t.Helper()
	request, err := svc.Create(context.Background(), driver, &CreateFuelRequestInput{
		VehicleID:       "KBX-101",
		RequestedAmount: amount,
	})
	require.NoError(t, err)
	return request
}

func TestCreate_PendingWithValidationArtifacts(t *testing.T) {
	svc, _, publisher := newTestService()

	request, err := svc.Create(context.Background(), driver, &CreateFuelRequestInput{
		VehicleID:       "KBX-101",
		RequestedAmount: 20,
		Reason:          "weekly route",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, request.Status)
	assert.Equal(t, driver.ID, request.DriverID)
	assert.Equal(t, 50.0, request.CurrentFuelLevel)
	assert.Equal(t, 30.0, request.ManagerSuggestion)
	assert.Equal(t, models.UrgencyNormal, request.Urgency)
	assert.Empty(t, request.ValidationWarnings)
	assert.False(t, request.RequestTime.IsZero())

	published := publisher.all()
	require.Len(t, published, 1)
	assert.Equal(t, models.ChangeCreated, published[0].event.ChangeType)
	assert.Equal(t, []string{events.ChannelManagers}, published[0].channels)
}

func TestCreate_HardBlockedPersistsNothing(t *testing.T) {
	svc, store, publisher := newTestService()

	// 30L free + 5L tolerance: 36L is past the cutoff.
	_, err := svc.Create(context.Background(), driver, &CreateFuelRequestInput{
		VehicleID:       "KBX-101",
		RequestedAmount: 36,
	})

	var blocked *ValidationBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, 30.0, blocked.Verdict.MaxPossible)
	assert.Equal(t, 30.0, blocked.Verdict.SuggestedAmount)

	assert.Empty(t, store.byID)
	assert.Empty(t, publisher.all())
}

func TestCreate_ManagerCannotCreate(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), manager, &CreateFuelRequestInput{
		VehicleID:       "KBX-101",
		RequestedAmount: 20,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestApprove_HappyPathAndDoubleApprove(t *testing.T) {
	svc, _, publisher := newTestService()
	request := createPending(t, svc, 30)

	amount := 25.0
	approved, err := svc.Approve(context.Background(), manager, request.ID.Hex(), &amount, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAmount)
	assert.Equal(t, 25.0, *approved.ApprovedAmount)
	assert.Equal(t, manager.ID, approved.ReviewerID)
	require.NotNil(t, approved.ReviewTime)

	published := publisher.all()
	require.Len(t, published, 2)
	assert.Equal(t, models.ChangeApproved, published[1].event.ChangeType)
	assert.Equal(t, []string{"driver-" + driver.ID, events.ChannelManagers}, published[1].channels)

	// A second approval must fail the precondition, not silently pass.
	_, err = svc.Approve(context.Background(), manager, request.ID.Hex(), nil, "")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.StatusApproved, invalid.Current)
	assert.Len(t, publisher.all(), 2)
}

func TestApprove_DefaultsToRequestedAmount(t *testing.T) {
	svc, _, _ := newTestService()
	request := createPending(t, svc, 30)

	approved, err := svc.Approve(context.Background(), manager, request.ID.Hex(), nil, "")
	require.NoError(t, err)
	require.NotNil(t, approved.ApprovedAmount)
	assert.Equal(t, 30.0, *approved.ApprovedAmount)
}

func TestApprove_DriverForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	request := createPending(t, svc, 30)

	_, err := svc.Approve(context.Background(), driver, request.ID.Hex(), nil, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestReject_DefaultsNotesAndPublishesMessage(t *testing.T) {
	svc, _, publisher := newTestService()
	request := createPending(t, svc, 30)

	rejected, err := svc.Reject(context.Background(), manager, request.ID.Hex(), "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "Rejected by fleet manager", rejected.Notes)
	assert.Equal(t, manager.ID, rejected.ReviewerID)
	require.NotNil(t, rejected.ReviewTime)

	published := publisher.all()
	require.Len(t, published, 2)
	assert.Contains(t, published[1].event.Message, "Rejected by fleet manager")
}

func TestCancel_OwnerOnly(t *testing.T) {
	svc, _, _ := newTestService()
	request := createPending(t, svc, 30)
	id := request.ID.Hex()

	_, err := svc.Approve(context.Background(), manager, id, nil, "")
	require.NoError(t, err)

	// Another driver cannot cancel.
	_, err = svc.Cancel(context.Background(), otherDriver, id)
	assert.ErrorIs(t, err, ErrForbidden)

	// Neither can a manager: cancellation belongs to the owner.
	_, err = svc.Cancel(context.Background(), manager, id)
	assert.ErrorIs(t, err, ErrForbidden)

	// The owning driver can, even after approval.
	cancelled, err := svc.Cancel(context.Background(), driver, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}

func TestFulfill_OnlyFromApproved(t *testing.T) {
	svc, _, _ := newTestService()
	request := createPending(t, svc, 30)
	id := request.ID.Hex()

	_, err := svc.Fulfill(context.Background(), manager, id)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.StatusPending, invalid.Current)

	_, err = svc.Approve(context.Background(), manager, id, nil, "")
	require.NoError(t, err)

	fulfilled, err := svc.Fulfill(context.Background(), manager, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfillmentTime)
}

func TestTerminalStatesAcceptNoFurtherTransitions(t *testing.T) {
	svc, _, _ := newTestService()
	request := createPending(t, svc, 30)
	id := request.ID.Hex()

	_, err := svc.Cancel(context.Background(), driver, id)
	require.NoError(t, err)

	var invalid *InvalidTransitionError
	_, err = svc.Approve(context.Background(), manager, id, nil, "")
	assert.ErrorAs(t, err, &invalid)
	_, err = svc.Reject(context.Background(), manager, id, "no")
	assert.ErrorAs(t, err, &invalid)
	_, err = svc.Fulfill(context.Background(), manager, id)
	assert.ErrorAs(t, err, &invalid)
	_, err = svc.Cancel(context.Background(), driver, id)
	assert.ErrorAs(t, err, &invalid)
}

func TestConcurrentApproveAndCancel_OneWinner(t *testing.T) {
	svc, _, publisher := newTestService()
	request := createPending(t, svc, 30)
	id := request.ID.Hex()

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = svc.Approve(context.Background(), manager, id, nil, "")
	}()
	go func() {
		defer wg.Done()
		_, results[1] = svc.Reject(context.Background(), manager, id, "beaten")
	}()
	wg.Wait()

	var invalidCount, okCount int
	for _, err := range results {
		var invalid *InvalidTransitionError
		switch {
		case err == nil:
			okCount++
		case errors.As(err, &invalid):
			invalidCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, invalidCount)

	// create + exactly one transition event.
	assert.Len(t, publisher.all(), 2)
}

func TestList_RoleScoping(t *testing.T) {
	svc, _, _ := newTestService()
	createPending(t, svc, 10)

	other, err := svc.Create(context.Background(), otherDriver, &CreateFuelRequestInput{
		VehicleID:       "KBX-202",
		RequestedAmount: 15,
	})
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), driver, repository.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, driver.ID, mine[0].DriverID)

	all, err := svc.List(context.Background(), manager, repository.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byVehicle, err := svc.List(context.Background(), manager, repository.RequestFilter{VehicleID: other.VehicleID})
	require.NoError(t, err)
	require.Len(t, byVehicle, 1)
	assert.Equal(t, otherDriver.ID, byVehicle[0].DriverID)
}

func TestGet_OwnershipEnforced(t *testing.T) {
	svc, _, _ := newTestService()
	request := createPending(t, svc, 10)
	id := request.ID.Hex()

	_, err := svc.Get(context.Background(), otherDriver, id)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Get(context.Background(), manager, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID.Hex())

	_, err = svc.Get(context.Background(), manager, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetValidationDetails_ReRunsEngine(t *testing.T) {
	svc, _, _ := newTestService()
	request := createPending(t, svc, 30)

	verdict, err := svc.GetValidationDetails(context.Background(), driver, request.ID.Hex())
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.Equal(t, 30.0, verdict.MaxPossible)
}

func TestStats_ManagerOnly(t *testing.T) {
	svc, _, _ := newTestService()
	request := createPending(t, svc, 30)
	_, err := svc.Approve(context.Background(), manager, request.ID.Hex(), nil, "")
	require.NoError(t, err)

	_, err = svc.Stats(context.Background(), driver)
	assert.ErrorIs(t, err, ErrForbidden)

	stats, err := svc.Stats(context.Background(), manager)
	require.NoError(t, err)
	counts := stats["countsByStatus"].(map[string]int64)
	assert.Equal(t, int64(1), counts[models.StatusApproved])
	assert.Equal(t, 30.0, stats["approvedLiters"])
}
