package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestMessageType_Valid(t *testing.T) {
	tests := []struct {
		in   MessageType
		want bool
	}{
		{MessageChat, true},
		{MessageJoin, true},
		{MessageLeave, true},
		{MessageTyping, true},
		{MessageStopTyping, true},
		{MessageSystem, true},
		{"text", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.want {
			t.Errorf("MessageType(%q).Valid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseMessageType(t *testing.T) {
	if got := ParseMessageType(" stop_typing "); got != MessageStopTyping {
		t.Errorf("ParseMessageType = %q, want %q", got, MessageStopTyping)
	}
}

func TestChatMessage_JSONFieldNames(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	msg := NewChatMessage("alice", "hello", MessageChat, now)

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	s := string(data)
	for _, want := range []string{
		`"senderName":"alice"`,
		`"content":"hello"`,
		`"messageType":"CHAT"`,
		`"timestamp":"2024-03-01T12:30:00.000Z"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "isQueuedMessage") {
		t.Errorf("encoded %s should omit isQueuedMessage", s)
	}
}

func TestChatMessage_DecodeServerEcho(t *testing.T) {
	data := `{"id":42,"roomId":7,"senderId":3,"senderName":"bob","content":"hi","messageType":"JOIN","createdAt":"2024-03-01T12:30:00"}`

	var msg ChatMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if msg.ID != 42 {
		t.Errorf("ID = %d, want 42", msg.ID)
	}
	if msg.RoomID != 7 {
		t.Errorf("RoomID = %d, want 7", msg.RoomID)
	}
	if msg.MessageType != MessageJoin {
		t.Errorf("MessageType = %s, want JOIN", msg.MessageType)
	}
	if msg.CreatedAt != "2024-03-01T12:30:00" {
		t.Errorf("CreatedAt = %s", msg.CreatedAt)
	}
}

func TestDestinations(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"send", SendDestination("5"), "/app/chat/5/sendMessage"},
		{"join", JoinDestination("5"), "/app/chat/5/addUser"},
		{"leave", LeaveDestination("5"), "/app/chat/5/leaveUser"},
		{"typing", TypingDestination("5"), "/app/chat/5/typing"},
		{"stop typing", StopTypingDestination("5"), "/app/chat/5/stopTyping"},
		{"room topic", RoomTopic("5"), "/topic/chat/5/public"},
		{"notifications", NotificationQueue("alice"), "/user/alice/queue/notifications"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestErrorTaxonomy_Unwrap(t *testing.T) {
	root := errors.New("broken pipe")

	var connErr error = &ConnectionError{Op: "dial", Err: root}
	if !errors.Is(connErr, root) {
		t.Error("ConnectionError should unwrap to root cause")
	}

	var sendErr error = &SendError{Destination: "/app/x", Err: root}
	if !errors.Is(sendErr, root) {
		t.Error("SendError should unwrap to root cause")
	}

	var subErr error = &SubscriptionError{Destination: "/topic/x", Err: root}
	if !errors.Is(subErr, root) {
		t.Error("SubscriptionError should unwrap to root cause")
	}

	var parseErr error = &ParseError{Destination: "/topic/x", Err: root}
	if !errors.Is(parseErr, root) {
		t.Error("ParseError should unwrap to root cause")
	}

	if !IsTimeout(&TimeoutError{Op: "handshake", Timeout: time.Second}) {
		t.Error("IsTimeout should match *TimeoutError")
	}
	if !IsTimeout(fmt.Errorf("connect: %w", &TimeoutError{Op: "handshake", Timeout: time.Second})) {
		t.Error("IsTimeout should match a wrapped *TimeoutError")
	}
	if IsTimeout(connErr) {
		t.Error("IsTimeout should not match ConnectionError")
	}
}

func TestTimeoutError_Message(t *testing.T) {
	err := &TimeoutError{Op: "stomp handshake", Timeout: 2 * time.Second}
	if got := err.Error(); !strings.Contains(got, "stomp handshake timed out after 2s") {
		t.Errorf("Error() = %q, want op and bound", got)
	}
}
