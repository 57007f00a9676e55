package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"fuelops-backend/internal/delivery"
	"fuelops-backend/internal/events"
	"fuelops-backend/internal/models"

	"github.com/gorilla/websocket"
)

// Client represents one authenticated WebSocket connection. Focus state is
// reported by the browser and read atomically at delivery time.
type Client struct {
	ID          string
	Actor       models.Actor
	Conn        *websocket.Conn
	Send        chan delivery.Alert
	LastPing    time.Time
	IsActive    bool
	focused     atomic.Bool
	subs        []*events.Subscription
	coordinator *delivery.Coordinator
	forwarders  sync.WaitGroup
}

// Focused reports whether the client's tab currently has foreground focus.
func (c *Client) Focused() bool {
	return c.focused.Load()
}

// SetFocused records a focus change reported by the client.
func (c *Client) SetFocused(focused bool) {
	c.focused.Store(focused)
}

// AlertManager interface defines the contract for WebSocket management
type AlertManager interface {
	RegisterClient(clientID string, actor models.Actor, conn *websocket.Conn) error
	UnregisterClient(clientID string) error
	GetConnectedClients() int
	Start() error
	Stop() error
	GetClientStats() ClientStats
}

// ClientStats provides statistics about connected clients
type ClientStats struct {
	TotalClients    int `json:"totalClients"`
	ActiveClients   int `json:"activeClients"`
	InactiveClients int `json:"inactiveClients"`
}

// Message types for WebSocket communication
const (
	MessageTypeFuelAlert = "fuel_alert"
	MessageTypeFocus     = "focus"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
)
