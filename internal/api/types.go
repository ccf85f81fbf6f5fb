package api

import "encoding/json"

// HistoryMessage is one stored message from GET /rooms/{roomId}/messages.
type HistoryMessage struct {
	ID          int64  `json:"id"`
	RoomID      int64  `json:"roomId"`
	SenderID    int64  `json:"senderId"`
	SenderName  string `json:"senderName"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`

	// CreatedAt is either an ISO 8601 string or a [y,m,d,h,m,s,nanos] array,
	// depending on how the server serialises local date-times.
	CreatedAt json.RawMessage `json:"createdAt"`
}

// HistoryOptions configures a RoomMessages request.
type HistoryOptions struct {
	Page          int
	PageSize      int
	LastMessageID int64
}
