package models

import "time"

// Lifecycle event change types, one per state-machine transition.
const (
	ChangeCreated   = "created"
	ChangeApproved  = "approved"
	ChangeRejected  = "rejected"
	ChangeCancelled = "cancelled"
	ChangeFulfilled = "fulfilled"
)

// LifecycleEvent is the immutable fact published after every committed
// transition. Request is a snapshot; subscribers never see live store state.
type LifecycleEvent struct {
	Request        FuelRequest `json:"request"`
	ChangeType     string      `json:"changeType"`
	PreviousStatus string      `json:"previousStatus"`
	NewStatus      string      `json:"newStatus"`
	ActorID        string      `json:"actorId"`
	OccurredAt     time.Time   `json:"occurredAt"`
	Message        string      `json:"message,omitempty"`
}
