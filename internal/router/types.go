package router

import (
	"github.com/rickgao/chatlink/internal/eventbus"
	"github.com/rickgao/chatlink/internal/model"
)

// Classifier resolves the kind of subscription a frame arrived on.
type Classifier interface {
	KindOf(subscriptionID, destination string) model.DestinationKind
}

// Routed is the outcome of routing one frame.
type Routed struct {
	// Type is empty when the frame produces no event.
	Type eventbus.EventType
	Data any

	Kind model.DestinationKind
}

// HasEvent reports whether the frame produced an event.
func (r Routed) HasEvent() bool {
	return r.Type != ""
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	FramesReceived int64
	Messages       int64
	Notifications  int64
	HeartbeatAcks  int64
	ServerErrors   int64
	ParseErrors    int64
	Unknown        int64
}
