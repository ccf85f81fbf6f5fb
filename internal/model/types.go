package model

import (
	"strings"
	"time"
)

// MessageType classifies a chat envelope.
type MessageType string

const (
	MessageChat       MessageType = "CHAT"
	MessageJoin       MessageType = "JOIN"
	MessageLeave      MessageType = "LEAVE"
	MessageTyping     MessageType = "TYPING"
	MessageStopTyping MessageType = "STOP_TYPING"
	MessageSystem     MessageType = "SYSTEM"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageChat, MessageJoin, MessageLeave, MessageTyping, MessageStopTyping, MessageSystem:
		return true
	}
	return false
}

// ParseMessageType normalises s into a MessageType. Unknown values are
// returned as-is so callers can decide how strict to be.
func ParseMessageType(s string) MessageType {
	return MessageType(strings.ToUpper(strings.TrimSpace(s)))
}

// ChatMessage is the JSON envelope exchanged with the server.
type ChatMessage struct {
	ID          int64       `json:"id,omitempty"`
	RoomID      int64       `json:"roomId,omitempty"`
	SenderName  string      `json:"senderName"`
	Content     string      `json:"content,omitempty"`
	MessageType MessageType `json:"messageType"`
	Timestamp   string      `json:"timestamp,omitempty"`
	CreatedAt   string      `json:"createdAt,omitempty"`

	// Set on messages replayed from the outbound queue.
	IsQueuedMessage bool `json:"isQueuedMessage,omitempty"`
}

// NewChatMessage builds an outbound envelope stamped with now.
func NewChatMessage(sender, content string, msgType MessageType, now time.Time) ChatMessage {
	return ChatMessage{
		SenderName:  sender,
		Content:     content,
		MessageType: msgType,
		Timestamp:   FormatTimestamp(now),
	}
}

// FormatTimestamp renders t the way the server expects outbound timestamps.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// PingMessage is the body sent to the application ping destination.
type PingMessage struct {
	Timestamp int64 `json:"timestamp"` // Unix milliseconds
}

// Notification is an out-of-band message delivered on the per-user queue.
// The payload shape is owned by the server, so it is kept raw.
type Notification struct {
	Destination string
	Body        []byte
	ReceivedAt  time.Time
}
