package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/chatlink/internal/stomp"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrHandshakeRejected = errors.New("handshake rejected by server")
	ErrUnexpectedFrame   = errors.New("unexpected frame during handshake")
	ErrEmptyDestination  = errors.New("empty destination")
	ErrEmptySubscription = errors.New("empty subscription id")
)

// InboundFrame is one unit of inbound traffic with its local receive time.
// Heart-beats carry no frame. Err is set when the message could not be decoded.
type InboundFrame struct {
	Frame      stomp.Frame
	Heartbeat  bool
	Err        error
	Raw        []byte // Set only when Err != nil
	ReceivedAt time.Time
}

// ClientConfig configures a STOMP-over-WebSocket client.
type ClientConfig struct {
	URL               string        // WebSocket URL (e.g., ws://localhost:8080/ws/websocket)
	Host              string        // STOMP host header; defaults to the URL host
	Header            http.Header   // Extra headers for the WebSocket upgrade request
	HandshakeTimeout  time.Duration // Bound for the WebSocket upgrade when ctx has no deadline
	WriteTimeout      time.Duration // Write deadline for each frame
	HeartbeatOutgoing time.Duration // Heart-beats we offer to send (0 = none)
	HeartbeatIncoming time.Duration // Heart-beats we want to receive (0 = none)
	BufferSize        int           // Inbound frame channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		HeartbeatOutgoing: 20 * time.Second,
		HeartbeatIncoming: 20 * time.Second,
		BufferSize:        256,
	}
}

// acceptVersion is what we advertise in CONNECT.
const acceptVersion = "1.1,1.2"

// jsonContentType is sent with every SEND frame.
const jsonContentType = "application/json;charset=UTF-8"
