package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/rickgao/chatlink/internal/stomp"
)

// Client represents a single STOMP session over a WebSocket connection.
type Client interface {
	// Connect dials the server and completes the STOMP handshake.
	// The handshake is bounded by ctx.
	Connect(ctx context.Context) error

	// Close sends DISCONNECT and closes the connection.
	Close() error

	// Send publishes a JSON body to a destination.
	Send(destination string, body []byte) error

	// Subscribe subscribes to a destination and returns the subscription id.
	Subscribe(destination string) (string, error)

	// Unsubscribe cancels a subscription by id.
	Unsubscribe(id string) error

	// Frames returns a channel of ALL inbound traffic (frames + heart-beats).
	Frames() <-chan InboundFrame

	// Errors returns a channel that receives the error that ended the read loop.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	frames chan InboundFrame
	errors chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu            sync.RWMutex
	connected     bool
	closed        bool
	sendHeartbeat time.Duration
	serverVersion string
}

// NewClient creates a new STOMP client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultClientConfig().BufferSize
	}

	return &client{
		cfg:    cfg,
		logger: logger,
		frames: make(chan InboundFrame, cfg.BufferSize),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and performs the STOMP handshake.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	// Abort a blocked handshake read when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	connected, err := c.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("stomp handshake: %w", ctxErr)
		}
		return fmt.Errorf("stomp handshake: %w", err)
	}

	serverOut, serverIn, err := stomp.ParseHeartBeat(connected.Get(stomp.HdrHeartBeat))
	if err != nil {
		c.logger.Warn("ignoring bad heart-beat header", "error", err)
	}
	send, expect := stomp.NegotiateHeartBeat(c.cfg.HeartbeatOutgoing, c.cfg.HeartbeatIncoming, serverOut, serverIn)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.sendHeartbeat = send
	c.serverVersion = connected.Get(stomp.HdrVersion)
	c.mu.Unlock()

	go c.readLoop()
	if send > 0 {
		go c.heartbeatLoop(send)
	}

	c.logger.Debug("stomp connected",
		"url", c.cfg.URL,
		"version", c.serverVersion,
		"heartbeat_send", send,
		"heartbeat_expect", expect,
	)

	return nil
}

// handshake writes CONNECT and waits for CONNECTED.
func (c *client) handshake(ctx context.Context, conn *websocket.Conn) (stomp.Frame, error) {
	host := c.cfg.Host
	if host == "" {
		if u, err := url.Parse(c.cfg.URL); err == nil {
			host = u.Hostname()
		}
	}

	connect := stomp.NewFrame(stomp.CmdConnect,
		stomp.HdrAcceptVersion, acceptVersion,
		stomp.HdrHost, host,
		stomp.HdrHeartBeat, stomp.FormatHeartBeat(c.cfg.HeartbeatOutgoing, c.cfg.HeartbeatIncoming),
	)

	deadline, ok := ctx.Deadline()
	if !ok && c.cfg.HandshakeTimeout > 0 {
		deadline = time.Now().Add(c.cfg.HandshakeTimeout)
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, stomp.Marshal(connect)); err != nil {
		return stomp.Frame{}, err
	}

	conn.SetReadDeadline(deadline)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return stomp.Frame{}, err
		}
		if stomp.IsHeartbeat(data) {
			continue
		}

		frames, err := stomp.Parse(data)
		if err != nil {
			return stomp.Frame{}, err
		}
		if len(frames) == 0 {
			continue
		}

		f := frames[0]
		switch f.Command {
		case stomp.CmdConnected:
			conn.SetReadDeadline(time.Time{})
			conn.SetWriteDeadline(time.Time{})
			return f, nil
		case stomp.CmdError:
			return stomp.Frame{}, fmt.Errorf("%w: %s", ErrHandshakeRejected, errorMessage(f))
		default:
			return stomp.Frame{}, fmt.Errorf("%w: %s", ErrUnexpectedFrame, f.Command)
		}
	}
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	wasConnected := c.connected
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	// Signal goroutines to stop
	close(c.done)

	if conn == nil {
		return nil
	}

	if wasConnected {
		disconnect := stomp.NewFrame(stomp.CmdDisconnect, stomp.HdrReceipt, uuid.NewString())
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, stomp.Marshal(disconnect)); err != nil {
			c.logger.Debug("failed to send disconnect", "error", err)
		}
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
	}

	return conn.Close()
}

// Send publishes body to destination.
func (c *client) Send(destination string, body []byte) error {
	if destination == "" {
		return ErrEmptyDestination
	}
	f := stomp.NewFrame(stomp.CmdSend,
		stomp.HdrDestination, destination,
		stomp.HdrContentType, jsonContentType,
	)
	f.Body = body
	return c.write(stomp.Marshal(f))
}

// Subscribe sends SUBSCRIBE and returns the generated subscription id.
func (c *client) Subscribe(destination string) (string, error) {
	if destination == "" {
		return "", ErrEmptyDestination
	}
	id := "sub-" + xid.New().String()
	f := stomp.NewFrame(stomp.CmdSubscribe,
		stomp.HdrID, id,
		stomp.HdrDestination, destination,
		stomp.HdrAck, "auto",
	)
	if err := c.write(stomp.Marshal(f)); err != nil {
		return "", err
	}
	return id, nil
}

// Unsubscribe sends UNSUBSCRIBE for id.
func (c *client) Unsubscribe(id string) error {
	if id == "" {
		return ErrEmptySubscription
	}
	return c.write(stomp.Marshal(stomp.NewFrame(stomp.CmdUnsubscribe, stomp.HdrID, id)))
}

// write serializes a frame onto the connection.
func (c *client) write(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Frames returns the inbound channel.
func (c *client) Frames() <-chan InboundFrame {
	return c.frames
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop reads messages from the WebSocket and forwards them as frames.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
				return
			default:
				select {
				case c.errors <- err:
				default:
				}
				return
			}
		}

		if stomp.IsHeartbeat(data) {
			if !c.deliver(InboundFrame{Heartbeat: true, ReceivedAt: receivedAt}) {
				return
			}
			continue
		}

		frames, err := stomp.Parse(data)
		if err != nil {
			c.logger.Warn("malformed frame", "error", err, "size", len(data))
			if !c.deliver(InboundFrame{Err: err, Raw: data, ReceivedAt: receivedAt}) {
				return
			}
			continue
		}

		for _, f := range frames {
			if !c.deliver(InboundFrame{Frame: f, ReceivedAt: receivedAt}) {
				return
			}
		}
	}
}

// deliver blocks until the frame is consumed or the client is closed. Chat
// traffic is low volume, so back-pressure is preferred over dropping.
func (c *client) deliver(f InboundFrame) bool {
	select {
	case c.frames <- f:
		return true
	case <-c.done:
		return false
	}
}

// heartbeatLoop sends STOMP heart-beats at the negotiated interval.
func (c *client) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write([]byte("\n")); err != nil {
				c.logger.Debug("failed to send heart-beat", "error", err)
			}
		}
	}
}

// errorMessage extracts a human readable message from an ERROR frame.
func errorMessage(f stomp.Frame) string {
	if msg := f.Get(stomp.HdrMessage); msg != "" {
		return msg
	}
	return string(f.Body)
}
