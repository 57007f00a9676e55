package delivery

import (
	"fmt"
	"log"
	"time"

	"fuelops-backend/internal/models"
)

// DedupWindow is how long a repeated notification for the same transition
// stays suppressed.
const DedupWindow = 5000 * time.Millisecond

// Display modes. Exactly one applies per delivered alert.
const (
	DisplayToast = "toast"
	DisplayPush  = "push"
)

// Alert is one user-visible notification derived from a lifecycle event.
type Alert struct {
	Event   models.LifecycleEvent `json:"event"`
	Message string                `json:"message"`
	Display string                `json:"display"`
}

// RenderFunc surfaces an alert to the client. A render failure degrades to a
// no-op for that alert; it never stops the event loop.
type RenderFunc func(Alert) error

// FocusFunc samples whether the client currently has foreground focus. It is
// evaluated at delivery time, never cached at subscription time.
type FocusFunc func() bool

// Coordinator runs once per connected client. It deduplicates at-least-once
// deliveries, filters by audience, and routes each surviving event to either
// a toast (focused client) or a push alert (backgrounded client).
type Coordinator struct {
	actor       models.Actor
	dedup       *ExpiringSet
	focused     FocusFunc
	renderToast RenderFunc
	renderPush  RenderFunc
}

func NewCoordinator(actor models.Actor, focused FocusFunc, renderToast, renderPush RenderFunc) *Coordinator {
	return &Coordinator{
		actor:       actor,
		dedup:       NewExpiringSet(DedupWindow),
		focused:     focused,
		renderToast: renderToast,
		renderPush:  renderPush,
	}
}

// Handle processes one incoming event end to end. It reports whether an
// alert was surfaced, which the tests lean on; production callers ignore it.
func (c *Coordinator) Handle(ev models.LifecycleEvent) bool {
	if !c.dedup.Add(notificationID(ev)) {
		return false
	}

	if !c.audienceMatch(ev) {
		return false
	}

	alert := Alert{
		Event:   ev,
		Message: ev.Message,
	}
	if alert.Message == "" {
		alert.Message = synthesizeMessage(ev)
	}

	if c.focused() {
		alert.Display = DisplayToast
		if err := c.renderToast(alert); err != nil {
			log.Printf("delivery: toast render failed for request %s: %v", ev.Request.ID.Hex(), err)
			return false
		}
	} else {
		alert.Display = DisplayPush
		if err := c.renderPush(alert); err != nil {
			log.Printf("delivery: push render failed for request %s: %v", ev.Request.ID.Hex(), err)
			return false
		}
	}
	return true
}

// Close releases the dedup set's timers.
func (c *Coordinator) Close() {
	c.dedup.Close()
}

// audienceMatch applies the role/ownership filter: creation concerns only
// managers, review outcomes concern managers and the owning driver.
func (c *Coordinator) audienceMatch(ev models.LifecycleEvent) bool {
	if c.actor.IsManager() {
		return true
	}
	if ev.ChangeType == models.ChangeCreated {
		return false
	}
	return c.actor.Role == models.RoleDriver && ev.Request.DriverID == c.actor.ID
}

func notificationID(ev models.LifecycleEvent) string {
	return fmt.Sprintf("%s:%s", ev.ChangeType, ev.Request.ID.Hex())
}

func synthesizeMessage(ev models.LifecycleEvent) string {
	req := ev.Request
	switch ev.ChangeType {
	case models.ChangeCreated:
		return fmt.Sprintf("New fuel request for %.0fL on vehicle %s", req.RequestedAmount, req.VehicleID)
	case models.ChangeApproved:
		amount := req.RequestedAmount
		if req.ApprovedAmount != nil {
			amount = *req.ApprovedAmount
		}
		return fmt.Sprintf("Your fuel request for %.0fL has been approved", amount)
	case models.ChangeRejected:
		return fmt.Sprintf("Your fuel request for %.0fL has been rejected", req.RequestedAmount)
	case models.ChangeCancelled:
		return fmt.Sprintf("Fuel request for %.0fL was cancelled", req.RequestedAmount)
	case models.ChangeFulfilled:
		amount := req.RequestedAmount
		if req.ApprovedAmount != nil {
			amount = *req.ApprovedAmount
		}
		return fmt.Sprintf("Fuel request for %.0fL has been fulfilled", amount)
	default:
		return fmt.Sprintf("Fuel request %s updated", req.ID.Hex())
	}
}
