package model

import "fmt"

// Application destinations (client -> server).
func SendDestination(roomID string) string   { return fmt.Sprintf("/app/chat/%s/sendMessage", roomID) }
func JoinDestination(roomID string) string   { return fmt.Sprintf("/app/chat/%s/addUser", roomID) }
func LeaveDestination(roomID string) string  { return fmt.Sprintf("/app/chat/%s/leaveUser", roomID) }
func TypingDestination(roomID string) string { return fmt.Sprintf("/app/chat/%s/typing", roomID) }
func StopTypingDestination(roomID string) string {
	return fmt.Sprintf("/app/chat/%s/stopTyping", roomID)
}

// PingDestination receives application-level pings.
const PingDestination = "/app/ping"

// RoomTopic is the broadcast topic for a room's content.
func RoomTopic(roomID string) string {
	return fmt.Sprintf("/topic/chat/%s/public", roomID)
}

// NotificationQueue is the per-user private notification channel.
func NotificationQueue(username string) string {
	return fmt.Sprintf("/user/%s/queue/notifications", username)
}

// HeartbeatQueue is the shared heartbeat acknowledgment channel.
const HeartbeatQueue = "/user/queue/heartbeat"

// DestinationKind tells the router how to treat frames from a subscription.
type DestinationKind int

const (
	KindUnknown DestinationKind = iota
	KindRoom
	KindNotification
	KindHeartbeat
)

func (k DestinationKind) String() string {
	switch k {
	case KindRoom:
		return "room"
	case KindNotification:
		return "notification"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}
