package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fuelops-backend/internal/delivery"
	"fuelops-backend/internal/events"
	"fuelops-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewManager(t *testing.T) {
	manager := NewManager(events.NewRouter())

	assert.NotNil(t, manager)
	assert.NotNil(t, manager.clients)
	assert.NotNil(t, manager.register)
	assert.NotNil(t, manager.unregister)
}

func TestManagerStartStop(t *testing.T) {
	manager := NewManager(events.NewRouter())

	err := manager.Start()
	assert.NoError(t, err)

	// Give the manager a moment to start
	time.Sleep(10 * time.Millisecond)

	err = manager.Stop()
	assert.NoError(t, err)
}

func TestRegisterClient_SubscribesByRole(t *testing.T) {
	router := events.NewRouter()
	manager := NewManager(router)
	err := manager.Start()
	require.NoError(t, err)
	defer manager.Stop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := manager.upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		actor := models.Actor{ID: "driver-7", Role: models.RoleDriver}
		err = manager.RegisterClient("test-client", actor, conn)
		assert.NoError(t, err)

		// Give time for registration
		time.Sleep(50 * time.Millisecond)

		assert.Equal(t, 1, manager.GetConnectedClients())
		assert.Equal(t, 1, router.SubscriberCount(events.DriverChannel("driver-7")))
		assert.Equal(t, 0, router.SubscriberCount(events.ChannelManagers))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the handler to complete
	time.Sleep(100 * time.Millisecond)
}

func TestUnregisterClient_DetachesSubscriptions(t *testing.T) {
	router := events.NewRouter()
	manager := NewManager(router)
	err := manager.Start()
	require.NoError(t, err)
	defer manager.Stop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := manager.upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		actor := models.Actor{ID: "manager-1", Role: models.RoleManager}
		err = manager.RegisterClient("test-client", actor, conn)
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, manager.GetConnectedClients())
		assert.Equal(t, 1, router.SubscriberCount(events.ChannelManagers))

		err = manager.UnregisterClient("test-client")
		assert.NoError(t, err)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 0, manager.GetConnectedClients())
		assert.Equal(t, 0, router.SubscriberCount(events.ChannelManagers))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(150 * time.Millisecond)
}

func lifecycleEvent(changeType, driverID string) models.LifecycleEvent {
	amount := 25.0
	return models.LifecycleEvent{
		Request: models.FuelRequest{
			ID:              primitive.NewObjectID(),
			VehicleID:       "KBX-101",
			DriverID:        driverID,
			RequestedAmount: 30,
			ApprovedAmount:  &amount,
			Status:          models.StatusApproved,
		},
		ChangeType: changeType,
		NewStatus:  models.StatusApproved,
		OccurredAt: time.Now(),
	}
}

func readAlert(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var message map[string]interface{}
	require.NoError(t, conn.ReadJSON(&message))
	return message
}

func TestAlertDelivery_PushWhenUnfocusedToastWhenFocused(t *testing.T) {
	router := events.NewRouter()
	manager := NewManager(router)
	require.NoError(t, manager.Start())
	defer manager.Stop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := manager.upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		actor := models.Actor{ID: "driver-7", Role: models.RoleDriver}
		require.NoError(t, manager.RegisterClient("client-1", actor, conn))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	// Client starts backgrounded: alerts arrive as push.
	ev := lifecycleEvent(models.ChangeApproved, "driver-7")
	router.Publish(ev, events.ChannelsFor(ev)...)

	message := readAlert(t, conn)
	assert.Equal(t, MessageTypeFuelAlert, message["type"])
	data := message["data"].(map[string]interface{})
	assert.Equal(t, delivery.DisplayPush, data["display"])
	assert.Contains(t, data["message"], "approved")

	// After the client reports focus, alerts become toasts.
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    MessageTypeFocus,
		"focused": true,
	}))
	time.Sleep(50 * time.Millisecond)

	ev = lifecycleEvent(models.ChangeFulfilled, "driver-7")
	router.Publish(ev, events.ChannelsFor(ev)...)

	message = readAlert(t, conn)
	data = message["data"].(map[string]interface{})
	assert.Equal(t, delivery.DisplayToast, data["display"])
}

func TestAlertDelivery_CreatedReachesManagersOnly(t *testing.T) {
	router := events.NewRouter()
	manager := NewManager(router)
	require.NoError(t, manager.Start())
	defer manager.Stop()

	actors := map[string]models.Actor{
		"/driver":  {ID: "driver-7", Role: models.RoleDriver},
		"/manager": {ID: "manager-1", Role: models.RoleManager},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := manager.upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		actor := actors[r.URL.Path]
		require.NoError(t, manager.RegisterClient(actor.ID, actor, conn))
	}))
	defer server.Close()

	base := "ws" + strings.TrimPrefix(server.URL, "http")
	driverConn, _, err := websocket.DefaultDialer.Dial(base+"/driver", nil)
	require.NoError(t, err)
	defer driverConn.Close()
	managerConn, _, err := websocket.DefaultDialer.Dial(base+"/manager", nil)
	require.NoError(t, err)
	defer managerConn.Close()

	time.Sleep(50 * time.Millisecond)

	ev := lifecycleEvent(models.ChangeCreated, "driver-7")
	ev.NewStatus = models.StatusPending
	router.Publish(ev, events.ChannelsFor(ev)...)

	message := readAlert(t, managerConn)
	assert.Equal(t, MessageTypeFuelAlert, message["type"])

	// The owning driver gets nothing for a creation.
	driverConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var discarded map[string]interface{}
	err = driverConn.ReadJSON(&discarded)
	assert.Error(t, err)
}

func idleClient(id string, lastPing time.Time) *Client {
	actor := models.Actor{ID: id, Role: models.RoleDriver}
	client := &Client{
		ID:       id,
		Actor:    actor,
		Send:     make(chan delivery.Alert, 256),
		LastPing: lastPing,
		IsActive: true,
	}
	client.coordinator = delivery.NewCoordinator(actor, client.Focused,
		func(delivery.Alert) error { return nil },
		func(delivery.Alert) error { return nil })
	return client
}

func TestGetClientStats(t *testing.T) {
	manager := NewManager(events.NewRouter())
	err := manager.Start()
	require.NoError(t, err)
	defer manager.Stop()

	// Initially no clients
	stats := manager.GetClientStats()
	assert.Equal(t, 0, stats.TotalClients)
	assert.Equal(t, 0, stats.ActiveClients)
	assert.Equal(t, 0, stats.InactiveClients)

	// Add a mock client directly for testing
	client := idleClient("test-client", time.Now())

	manager.mutex.Lock()
	manager.clients["test-client"] = client
	manager.mutex.Unlock()

	stats = manager.GetClientStats()
	assert.Equal(t, 1, stats.TotalClients)
	assert.Equal(t, 1, stats.ActiveClients)
	assert.Equal(t, 0, stats.InactiveClients)

	// Mark client as inactive
	client.IsActive = false

	stats = manager.GetClientStats()
	assert.Equal(t, 1, stats.TotalClients)
	assert.Equal(t, 0, stats.ActiveClients)
	assert.Equal(t, 1, stats.InactiveClients)
}

func TestHealthCheck(t *testing.T) {
	manager := NewManager(events.NewRouter())

	oldClient := idleClient("old-client", time.Now().Add(-2*time.Minute))
	freshClient := idleClient("fresh-client", time.Now())

	manager.mutex.Lock()
	manager.clients["old-client"] = oldClient
	manager.clients["fresh-client"] = freshClient
	manager.mutex.Unlock()

	assert.Equal(t, 2, len(manager.clients))

	// Run health check
	manager.healthCheck()

	// Old client should be removed, fresh client should remain
	assert.Equal(t, 1, len(manager.clients))
	_, exists := manager.clients["fresh-client"]
	assert.True(t, exists)
	_, exists = manager.clients["old-client"]
	assert.False(t, exists)
}
