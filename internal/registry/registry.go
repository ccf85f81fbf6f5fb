package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/chatlink/internal/model"
)

// Subscriber is the subset of the transport the registry drives.
type Subscriber interface {
	Subscribe(destination string) (string, error)
	Unsubscribe(id string) error
}

// Subscription is a live destination subscription.
type Subscription struct {
	Destination  string
	ID           string
	Kind         model.DestinationKind
	SubscribedAt time.Time
}

// Registry maps destinations to subscriptions.
type Registry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	byDest map[string]Subscription
	byID   map[string]string // subscription id -> destination
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger.With("component", "registry"),
		byDest: make(map[string]Subscription),
		byID:   make(map[string]string),
	}
}

// Subscribe subscribes to destination through s, replacing any existing
// subscription for the same destination.
func (r *Registry) Subscribe(s Subscriber, destination string, kind model.DestinationKind) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byDest[destination]; ok {
		r.unsubscribeLocked(s, old)
	}

	id, err := s.Subscribe(destination)
	if err != nil {
		return Subscription{}, &model.SubscriptionError{Destination: destination, Err: err}
	}

	sub := Subscription{
		Destination:  destination,
		ID:           id,
		Kind:         kind,
		SubscribedAt: time.Now(),
	}
	r.byDest[destination] = sub
	r.byID[id] = destination

	r.logger.Debug("subscribed", "destination", destination, "id", id, "kind", kind)
	return sub, nil
}

// Unsubscribe removes the subscription for destination. It reports whether
// one existed.
func (r *Registry) Unsubscribe(s Subscriber, destination string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byDest[destination]
	if !ok {
		return false
	}
	r.unsubscribeLocked(s, sub)
	return true
}

// SwitchRoom drops every room subscription and subscribes to newTopic.
// If the new subscription fails the registry is left with no room
// subscription.
func (r *Registry) SwitchRoom(s Subscriber, newTopic string) (Subscription, error) {
	r.mu.Lock()
	for _, sub := range r.byDest {
		if sub.Kind == model.KindRoom {
			r.unsubscribeLocked(s, sub)
		}
	}
	r.mu.Unlock()

	return r.Subscribe(s, newTopic, model.KindRoom)
}

// Clear unsubscribes everything through s and forgets it. A nil s only
// forgets, for transports that are already gone.
func (r *Registry) Clear(s Subscriber) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.byDest)
	for _, sub := range r.byDest {
		r.unsubscribeLocked(s, sub)
	}
	return n
}

// unsubscribeLocked forgets sub even when the transport call fails, since
// the server drops subscriptions with the connection anyway.
func (r *Registry) unsubscribeLocked(s Subscriber, sub Subscription) {
	delete(r.byDest, sub.Destination)
	delete(r.byID, sub.ID)

	if s == nil {
		return
	}
	if err := s.Unsubscribe(sub.ID); err != nil {
		r.logger.Debug("unsubscribe failed", "destination", sub.Destination, "id", sub.ID, "error", err)
	}
}

// Lookup returns the subscription with the given id.
func (r *Registry) Lookup(id string) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dest, ok := r.byID[id]
	if !ok {
		return Subscription{}, false
	}
	return r.byDest[dest], true
}

// KindOf classifies an inbound frame by its subscription id, falling back
// to its destination.
func (r *Registry) KindOf(id, destination string) model.DestinationKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if dest, ok := r.byID[id]; ok {
		return r.byDest[dest].Kind
	}
	if sub, ok := r.byDest[destination]; ok {
		return sub.Kind
	}
	return model.KindUnknown
}

// Room returns the current room subscription, if any.
func (r *Registry) Room() (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.byDest {
		if sub.Kind == model.KindRoom {
			return sub, true
		}
	}
	return Subscription{}, false
}

// Destinations returns the subscribed destinations in sorted order.
func (r *Registry) Destinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byDest))
	for dest := range r.byDest {
		out = append(out, dest)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDest)
}
