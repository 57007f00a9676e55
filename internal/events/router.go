package events

import (
	"fmt"
	"log"
	"sync"

	"fuelops-backend/internal/models"

	"github.com/google/uuid"
)

// ChannelManagers receives every lifecycle event; per-driver channels
// receive only events for that driver's own requests.
const ChannelManagers = "managers"

// DriverChannel names the private channel for one driver.
func DriverChannel(driverID string) string {
	return fmt.Sprintf("driver-%s", driverID)
}

// ChannelsFor is the routing table per change type. Creation is only
// interesting to managers; every review outcome goes to both audiences.
func ChannelsFor(ev models.LifecycleEvent) []string {
	if ev.ChangeType == models.ChangeCreated {
		return []string{ChannelManagers}
	}
	return []string{DriverChannel(ev.Request.DriverID), ChannelManagers}
}

// Subscription is one consumer's handle on a channel. Events arrive on
// Events in publish order for any given request; the channel is closed by
// Close or when the router shuts down.
type Subscription struct {
	ID      string
	Channel string
	Events  chan models.LifecycleEvent

	router    *Router
	closeOnce sync.Once
}

// Close detaches the subscription and closes its event stream.
func (s *Subscription) Close() {
	s.router.unsubscribe(s)
}

// Router fans lifecycle events out to named channels. Delivery is
// best-effort and fire-and-forget: a subscriber whose buffer is full misses
// the event and is expected to re-sync from a snapshot read.
type Router struct {
	mu       sync.RWMutex
	channels map[string]map[string]*Subscription
	bufSize  int
	closed   bool
}

func NewRouter() *Router {
	return &Router{
		channels: make(map[string]map[string]*Subscription),
		bufSize:  64,
	}
}

// Subscribe attaches a new consumer to the named channel.
func (r *Router) Subscribe(channel string) *Subscription {
	sub := &Subscription{
		ID:      uuid.New().String(),
		Channel: channel,
		Events:  make(chan models.LifecycleEvent, r.bufSize),
		router:  r,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(sub.Events)
		return sub
	}
	subs, ok := r.channels[channel]
	if !ok {
		subs = make(map[string]*Subscription)
		r.channels[channel] = subs
	}
	subs[sub.ID] = sub
	return sub
}

func (r *Router) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	if subs, ok := r.channels[sub.Channel]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(r.channels, sub.Channel)
		}
	}
	r.mu.Unlock()

	sub.closeOnce.Do(func() { close(sub.Events) })
}

// Publish delivers the event to every subscriber of the given channels.
// It never blocks: a full subscriber buffer drops that subscriber's copy.
func (r *Router) Publish(ev models.LifecycleEvent, channels ...string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	for _, name := range channels {
		for _, sub := range r.channels[name] {
			select {
			case sub.Events <- ev:
			default:
				log.Printf("events: subscriber %s on %s is saturated, dropping %s event for request %s",
					sub.ID, name, ev.ChangeType, ev.Request.ID.Hex())
			}
		}
	}
}

// SubscriberCount reports the number of consumers attached to a channel.
func (r *Router) SubscriberCount(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// Close shuts the router down and closes all subscriber streams.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, subs := range r.channels {
		for _, sub := range subs {
			sub.closeOnce.Do(func() { close(sub.Events) })
		}
	}
	r.channels = make(map[string]map[string]*Subscription)
}
