package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rickgao/chatlink/internal/model"
)

func TestParseCreatedAt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"local date-time", `"2024-01-15T10:00:00"`, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		{"fractional", `"2024-01-15T10:00:00.123456"`, time.Date(2024, 1, 15, 10, 0, 0, 123456000, time.UTC)},
		{"rfc3339", `"2024-01-15T12:00:00+02:00"`, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		{"space separated", `"2024-01-15 10:00:00"`, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		{"array", `[2024,1,15,10,0,0,500]`, time.Date(2024, 1, 15, 10, 0, 0, 500, time.UTC)},
		{"short array", `[2024,1,15]`, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"too short array", `[2024,1]`, time.Time{}},
		{"null", `null`, time.Time{}},
		{"empty", ``, time.Time{}},
		{"garbage", `"yesterday"`, time.Time{}},
		{"object", `{"a":1}`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCreatedAt(json.RawMessage(tt.input))
			if !got.Equal(tt.want) {
				t.Errorf("ParseCreatedAt(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHistoryMessageChatMessage(t *testing.T) {
	m := HistoryMessage{
		ID:          3,
		RoomID:      7,
		SenderID:    11,
		SenderName:  "alice",
		Content:     "alice joined",
		MessageType: "system",
		CreatedAt:   json.RawMessage(`"2024-01-15T10:00:00"`),
	}

	got := m.ChatMessage()
	if got.ID != 3 || got.RoomID != 7 {
		t.Errorf("ID/RoomID = %d/%d, want 3/7", got.ID, got.RoomID)
	}
	if got.MessageType != model.MessageSystem {
		t.Errorf("MessageType = %q, want %q", got.MessageType, model.MessageSystem)
	}
	if got.CreatedAt != "2024-01-15T10:00:00.000Z" {
		t.Errorf("CreatedAt = %q, want %q", got.CreatedAt, "2024-01-15T10:00:00.000Z")
	}
	if got.Timestamp != got.CreatedAt {
		t.Errorf("Timestamp = %q, want %q", got.Timestamp, got.CreatedAt)
	}

	m.CreatedAt = nil
	if got := m.ChatMessage(); got.CreatedAt != "" || got.Timestamp != "" {
		t.Errorf("missing createdAt produced %q/%q, want empty", got.CreatedAt, got.Timestamp)
	}
}

func TestToChatMessages(t *testing.T) {
	out := ToChatMessages(makeHistory(3))
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[2].Content != "msg 3" {
		t.Errorf("out[2].Content = %q, want %q", out[2].Content, "msg 3")
	}
	if got := ToChatMessages(nil); got == nil || len(got) != 0 {
		t.Errorf("ToChatMessages(nil) = %v, want empty non-nil slice", got)
	}
}
