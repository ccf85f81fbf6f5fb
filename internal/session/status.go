package session

import (
	"github.com/rickgao/chatlink/internal/heartbeat"
	"github.com/rickgao/chatlink/internal/reconnect"
	"github.com/rickgao/chatlink/internal/router"
)

// Health combines liveness with connection state.
type Health struct {
	State         string             `json:"state"`
	Connected     bool               `json:"connected"`
	Healthy       bool               `json:"healthy"`
	Broken        bool               `json:"broken"`
	RoomID        string             `json:"roomId,omitempty"`
	Username      string             `json:"username,omitempty"`
	QueueSize     int                `json:"queueSize"`
	Heartbeat     heartbeat.Health   `json:"heartbeat"`
	Reconnect     reconnect.Status   `json:"reconnect"`
	Subscriptions []string           `json:"subscriptions"`
	Router        router.RouterStats `json:"router"`
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the session is Connected.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// RoomID returns the current room.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sctx.roomID
}

// Username returns the current username.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sctx.username
}

// QueueSize returns the outbound queue depth.
func (s *Session) QueueSize() int {
	return s.queue.Len()
}

// ReconnectStatus returns the retry counters and settings.
func (s *Session) ReconnectStatus() reconnect.Status {
	return s.reconnect.Status()
}

// Health returns a snapshot for diagnostics.
func (s *Session) Health() Health {
	s.mu.Lock()
	state := s.state
	room, user := s.sctx.roomID, s.sctx.username
	s.mu.Unlock()

	hb := s.monitor.Health()
	connected := state == StateConnected
	return Health{
		State:         state.String(),
		Connected:     connected,
		Healthy:       connected && !hb.Stale,
		Broken:        state == StateBroken,
		RoomID:        room,
		Username:      user,
		QueueSize:     s.queue.Len(),
		Heartbeat:     hb,
		Reconnect:     s.reconnect.Status(),
		Subscriptions: s.registry.Destinations(),
		Router:        s.router.Stats(),
	}
}
