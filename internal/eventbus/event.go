package eventbus

import (
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/chatlink/internal/model"
)

// EventType names an event in the session catalogue.
type EventType string

// Event types
const (
	EventConnected         EventType = "connected"
	EventDisconnected      EventType = "disconnected"
	EventReconnectAttempt  EventType = "reconnect_attempt"
	EventReconnected       EventType = "reconnected"
	EventHeartbeatTimeout  EventType = "heartbeat_timeout"
	EventMessageReceived   EventType = "message_received"
	EventMessageSent       EventType = "message_sent"
	EventMessageSendFailed EventType = "message_send_failed"
	EventNotification      EventType = "notification"
	EventError             EventType = "error"
	EventRoomSwitched      EventType = "room_switched"
	EventQueueFlushed      EventType = "queue_flushed"
	EventStateChanged      EventType = "state_changed"
)

// Event is a single notification delivered to listeners.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewEvent creates a new event
func NewEvent(eventType EventType, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// DisconnectReason explains a disconnected event.
type DisconnectReason string

const (
	ReasonManual           DisconnectReason = "manual"
	ReasonAuto             DisconnectReason = "auto"
	ReasonConnectionLost   DisconnectReason = "connection_lost"
	ReasonHeartbeatTimeout DisconnectReason = "heartbeat_timeout"
	ReasonConnectFailed    DisconnectReason = "connect_failed"
	ReasonReconnectFailed  DisconnectReason = "reconnect_failed"
)

// ErrorType classifies an error event.
type ErrorType string

const (
	ErrorMessageParse ErrorType = "message_parse"
	ErrorSubscription ErrorType = "subscription"
	ErrorRoomSwitch   ErrorType = "room_switch"
	ErrorServer       ErrorType = "server"
	ErrorConnection   ErrorType = "connection"
	ErrorSend         ErrorType = "send"
)

// ConnectedData accompanies EventConnected.
type ConnectedData struct {
	RoomID    string `json:"roomId"`
	Username  string `json:"username"`
	Recovered bool   `json:"recovered"`
}

// DisconnectedData accompanies EventDisconnected.
type DisconnectedData struct {
	Reason DisconnectReason `json:"reason"`
	Err    error            `json:"-"`
}

// ReconnectAttemptData accompanies EventReconnectAttempt. It is emitted
// before the delay elapses.
type ReconnectAttemptData struct {
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"maxAttempts"`
	Delay       time.Duration `json:"delay"`
}

// ReconnectedData accompanies EventReconnected.
type ReconnectedData struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// HeartbeatTimeoutData accompanies EventHeartbeatTimeout.
type HeartbeatTimeoutData struct {
	LastSeenAt time.Time     `json:"lastSeenAt"`
	Timeout    time.Duration `json:"timeout"`
}

// MessageReceivedData accompanies EventMessageReceived.
type MessageReceivedData struct {
	Message     model.ChatMessage `json:"message"`
	Destination string            `json:"destination"`
	ReceivedAt  time.Time         `json:"receivedAt"`
}

// MessageSentData accompanies EventMessageSent.
type MessageSentData struct {
	Message     model.ChatMessage `json:"message"`
	Destination string            `json:"destination"`
	FromQueue   bool              `json:"fromQueue"`
}

// MessageSendFailedData accompanies EventMessageSendFailed. The message has
// been put back on the outbound queue.
type MessageSendFailedData struct {
	Content     string            `json:"content"`
	Sender      string            `json:"sender"`
	MessageType model.MessageType `json:"messageType"`
	Err         error             `json:"-"`
}

// ErrorData accompanies EventError.
type ErrorData struct {
	Type        ErrorType `json:"type"`
	Destination string    `json:"destination,omitempty"`
	Err         error     `json:"-"`
}

// RoomSwitchedData accompanies EventRoomSwitched.
type RoomSwitchedData struct {
	OldRoomID string `json:"oldRoomId"`
	NewRoomID string `json:"newRoomId"`
}

// QueueFlushedData accompanies EventQueueFlushed.
type QueueFlushedData struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// StateChangedData accompanies EventStateChanged.
type StateChangedData struct {
	From string `json:"from"`
	To   string `json:"to"`
}
