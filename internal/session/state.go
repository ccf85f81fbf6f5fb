package session

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateBroken is terminal until the caller connects again.
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// active reports whether the state holds or is acquiring a connection.
func (s State) active() bool {
	return s == StateConnecting || s == StateConnected || s == StateReconnecting
}
