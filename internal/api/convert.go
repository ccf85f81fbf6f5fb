package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rickgao/chatlink/internal/model"
)

// Layouts accepted for string createdAt values. Zone-less values are UTC.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseCreatedAt decodes a createdAt value. Returns the zero time for empty
// or unrecognised input.
func ParseCreatedAt(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		for _, layout := range createdAtLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		return time.Time{}
	}

	var parts []int
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 3 {
		return time.Time{}
	}
	for len(parts) < 7 {
		parts = append(parts, 0)
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
}

// ChatMessage converts a stored message into the live envelope shape.
func (m HistoryMessage) ChatMessage() model.ChatMessage {
	msg := model.ChatMessage{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderName:  m.SenderName,
		Content:     m.Content,
		MessageType: model.ParseMessageType(m.MessageType),
	}
	if t := ParseCreatedAt(m.CreatedAt); !t.IsZero() {
		msg.CreatedAt = model.FormatTimestamp(t)
		msg.Timestamp = msg.CreatedAt
	}
	return msg
}

// ToChatMessages converts a page of stored messages.
func ToChatMessages(in []HistoryMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(in))
	for _, m := range in {
		out = append(out, m.ChatMessage())
	}
	return out
}
