package websocket

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"fuelops-backend/internal/delivery"
	"fuelops-backend/internal/events"
	"fuelops-backend/internal/models"

	"github.com/gorilla/websocket"
)

// Manager implements the AlertManager interface. Each connected client gets
// its own router subscriptions and delivery coordinator; the manager only
// tracks connection lifecycle and health.
type Manager struct {
	router     *events.Router
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	done       chan struct{}
}

// NewManager creates a new WebSocket manager on top of the event router.
func NewManager(router *events.Router) *Manager {
	return &Manager{
		router:     router,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// In production, implement proper origin checking
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// Start begins the WebSocket manager's main loop
func (m *Manager) Start() error {
	go m.run()
	log.Println("WebSocket manager started")
	return nil
}

// Stop gracefully shuts down the WebSocket manager
func (m *Manager) Stop() error {
	close(m.done)

	m.mutex.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clients = make(map[string]*Client)
	m.mutex.Unlock()

	for _, client := range clients {
		m.teardownClient(client)
	}

	log.Println("WebSocket manager stopped")
	return nil
}

// run is the main event loop for the WebSocket manager
func (m *Manager) run() {
	ticker := time.NewTicker(30 * time.Second) // Health check interval
	defer ticker.Stop()

	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client.ID] = client
			m.mutex.Unlock()
			log.Printf("Client %s registered (role=%s)", client.ID, client.Actor.Role)
			go m.handleClient(client)

		case client := <-m.unregister:
			m.mutex.Lock()
			_, ok := m.clients[client.ID]
			if ok {
				delete(m.clients, client.ID)
			}
			m.mutex.Unlock()
			if ok {
				m.teardownClient(client)
				log.Printf("Client %s unregistered", client.ID)
			}

		case <-ticker.C:
			m.healthCheck()

		case <-m.done:
			return
		}
	}
}

// RegisterClient wires a newly upgraded connection into the event router.
// Managers join the shared managers channel; drivers join their private one.
func (m *Manager) RegisterClient(clientID string, actor models.Actor, conn *websocket.Conn) error {
	client := &Client{
		ID:       clientID,
		Actor:    actor,
		Conn:     conn,
		Send:     make(chan delivery.Alert, 256),
		LastPing: time.Now(),
		IsActive: true,
	}

	client.coordinator = delivery.NewCoordinator(
		actor,
		client.Focused,
		m.renderFor(client),
		m.renderFor(client),
	)

	if actor.IsManager() {
		client.subs = append(client.subs, m.router.Subscribe(events.ChannelManagers))
	} else {
		client.subs = append(client.subs, m.router.Subscribe(events.DriverChannel(actor.ID)))
	}

	for _, sub := range client.subs {
		client.forwarders.Add(1)
		go m.forwardEvents(client, sub)
	}

	m.register <- client
	return nil
}

// UnregisterClient removes a WebSocket client
func (m *Manager) UnregisterClient(clientID string) error {
	m.mutex.RLock()
	client, exists := m.clients[clientID]
	m.mutex.RUnlock()

	if exists {
		m.unregister <- client
	}
	return nil
}

// GetConnectedClients returns the number of connected clients
func (m *Manager) GetConnectedClients() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// GetClientStats returns detailed client statistics
func (m *Manager) GetClientStats() ClientStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := ClientStats{
		TotalClients: len(m.clients),
	}

	for _, client := range m.clients {
		if client.IsActive {
			stats.ActiveClients++
		} else {
			stats.InactiveClients++
		}
	}

	return stats
}

// GetUpgrader returns the WebSocket upgrader for external use
func (m *Manager) GetUpgrader() *websocket.Upgrader {
	return &m.upgrader
}

// forwardEvents pumps one subscription through the client's coordinator. It
// exits when the subscription stream closes.
func (m *Manager) forwardEvents(client *Client, sub *events.Subscription) {
	defer client.forwarders.Done()
	for ev := range sub.Events {
		client.coordinator.Handle(ev)
	}
}

// renderFor returns the coordinator's render callback for a client. The send
// is non-blocking: a saturated client misses the alert and is marked
// inactive for the next health check.
func (m *Manager) renderFor(client *Client) delivery.RenderFunc {
	return func(alert delivery.Alert) error {
		select {
		case client.Send <- alert:
			return nil
		default:
			client.IsActive = false
			return errors.New("client send buffer full")
		}
	}
}

// teardownClient detaches router subscriptions, waits for in-flight event
// forwarding, then releases the connection.
func (m *Manager) teardownClient(client *Client) {
	for _, sub := range client.subs {
		sub.Close()
	}
	client.forwarders.Wait()
	client.coordinator.Close()
	close(client.Send)
	if client.Conn != nil {
		client.Conn.Close()
	}
}

// handleClient manages individual client connections
func (m *Manager) handleClient(client *Client) {
	defer func() {
		m.unregister <- client
	}()

	// Set up ping/pong handlers for connection health
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.LastPing = time.Now()
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Start goroutine to handle outgoing messages
	go m.writeMessages(client)

	// Handle incoming messages (mainly pings and focus updates)
	for {
		var message map[string]interface{}
		err := client.Conn.ReadJSON(&message)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for client %s: %v", client.ID, err)
			}
			break
		}

		if msgType, ok := message["type"].(string); ok && msgType == MessageTypeFocus {
			if focused, ok := message["focused"].(bool); ok {
				client.SetFocused(focused)
			}
		}
	}
}

// writeMessages handles outgoing messages to a client
func (m *Manager) writeMessages(client *Client) {
	ticker := time.NewTicker(54 * time.Second) // Send ping every 54 seconds
	defer ticker.Stop()

	for {
		select {
		case alert, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(map[string]interface{}{
				"type": MessageTypeFuelAlert,
				"data": alert,
			}); err != nil {
				log.Printf("Error writing message to client %s: %v", client.ID, err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Error sending ping to client %s: %v", client.ID, err)
				return
			}
		}
	}
}

// healthCheck monitors client connections and removes inactive ones
func (m *Manager) healthCheck() {
	m.mutex.Lock()
	var stale []*Client
	now := time.Now()
	for clientID, client := range m.clients {
		// Remove clients that haven't responded to ping in 90 seconds
		if now.Sub(client.LastPing) > 90*time.Second {
			log.Printf("Client %s timed out, removing", clientID)
			delete(m.clients, clientID)
			stale = append(stale, client)
		}
	}
	m.mutex.Unlock()

	for _, client := range stale {
		m.teardownClient(client)
	}
}
