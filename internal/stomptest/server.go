// Package stomptest provides an in-process STOMP-over-WebSocket server for
// tests.
package stomptest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rickgao/chatlink/internal/stomp"
)

// Path is the WebSocket endpoint served by Server.
const Path = "/ws/websocket"

// Mode controls how the server answers CONNECT.
type Mode int

const (
	// ModeAccept replies CONNECTED.
	ModeAccept Mode = iota
	// ModeReject replies ERROR and closes.
	ModeReject
	// ModeSilent never replies, so the client handshake times out.
	ModeSilent
)

// Server is a minimal STOMP broker recording every client frame.
type Server struct {
	t   testing.TB
	srv *httptest.Server

	// URL is the ws:// address of the STOMP endpoint.
	URL string

	mu        sync.Mutex
	mode      Mode
	heartbeat string
	conns     map[*conn]struct{}
	frames    []stomp.Frame
	connects  int
}

type conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]string // id -> destination
}

func (c *conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		t:         t,
		heartbeat: "0,0",
		conns:     make(map[*conn]struct{}),
	}

	r := chi.NewRouter()
	r.Get(Path, s.handle)

	s.srv = httptest.NewServer(r)
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http") + Path
	t.Cleanup(s.Close)
	return s
}

// SetMode changes how subsequent CONNECT frames are answered.
func (s *Server) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// SetHeartBeat sets the heart-beat header sent in CONNECTED.
func (s *Server) SetHeartBeat(h string) {
	s.mu.Lock()
	s.heartbeat = h
	s.mu.Unlock()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Logf("stomptest: upgrade error: %v", err)
		return
	}

	c := &conn{ws: ws, subs: make(map[string]string)}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if stomp.IsHeartbeat(data) {
			continue
		}
		frames, err := stomp.Parse(data)
		if err != nil {
			s.t.Logf("stomptest: bad frame: %v", err)
			continue
		}
		for _, f := range frames {
			if !s.handleFrame(c, f) {
				return
			}
		}
	}
}

// handleFrame returns false when the connection should be closed.
func (s *Server) handleFrame(c *conn, f stomp.Frame) bool {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	mode := s.mode
	heartbeat := s.heartbeat
	s.mu.Unlock()

	switch f.Command {
	case stomp.CmdConnect, stomp.CmdStomp:
		s.mu.Lock()
		s.connects++
		s.mu.Unlock()

		switch mode {
		case ModeReject:
			c.write(stomp.Marshal(stomp.NewFrame(stomp.CmdError, stomp.HdrMessage, "connection rejected")))
			return false
		case ModeSilent:
			return true
		}
		c.write(stomp.Marshal(stomp.NewFrame(stomp.CmdConnected,
			stomp.HdrVersion, "1.2",
			stomp.HdrHeartBeat, heartbeat,
		)))

	case stomp.CmdSubscribe:
		c.mu.Lock()
		c.subs[f.Get(stomp.HdrID)] = f.Get(stomp.HdrDestination)
		c.mu.Unlock()

	case stomp.CmdUnsubscribe:
		c.mu.Lock()
		delete(c.subs, f.Get(stomp.HdrID))
		c.mu.Unlock()

	case stomp.CmdDisconnect:
		if receipt := f.Get(stomp.HdrReceipt); receipt != "" {
			c.write(stomp.Marshal(stomp.NewFrame(stomp.CmdReceipt, stomp.HdrReceiptID, receipt)))
		}
		return false
	}
	return true
}

// Publish delivers body as a MESSAGE to every connection subscribed to
// destination and returns the number of deliveries.
func (s *Server) Publish(destination string, body []byte) int {
	n := 0
	for _, c := range s.snapshotConns() {
		c.mu.Lock()
		var ids []string
		for id, dest := range c.subs {
			if dest == destination {
				ids = append(ids, id)
			}
		}
		c.mu.Unlock()

		for _, id := range ids {
			f := stomp.NewFrame(stomp.CmdMessage,
				stomp.HdrDestination, destination,
				stomp.HdrSubscription, id,
				stomp.HdrMessageID, id+"-msg",
			)
			f.Body = body
			if c.write(stomp.Marshal(f)) == nil {
				n++
			}
		}
	}
	return n
}

// SendRaw writes data verbatim to every connection.
func (s *Server) SendRaw(data []byte) {
	for _, c := range s.snapshotConns() {
		c.write(data)
	}
}

// DropConnections closes every connection without a STOMP goodbye.
func (s *Server) DropConnections() {
	for _, c := range s.snapshotConns() {
		c.ws.Close()
	}
}

func (s *Server) snapshotConns() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ConnectCount returns the number of CONNECT frames received.
func (s *Server) ConnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Subscriptions returns the destinations subscribed on open connections.
func (s *Server) Subscriptions() []string {
	var out []string
	for _, c := range s.snapshotConns() {
		c.mu.Lock()
		for _, dest := range c.subs {
			out = append(out, dest)
		}
		c.mu.Unlock()
	}
	return out
}

// Frames returns every frame received, in order.
func (s *Server) Frames() []stomp.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stomp.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Sent returns the SEND frames addressed to destination.
func (s *Server) Sent(destination string) []stomp.Frame {
	var out []stomp.Frame
	for _, f := range s.Frames() {
		if f.Command == stomp.CmdSend && f.Get(stomp.HdrDestination) == destination {
			out = append(out, f)
		}
	}
	return out
}

// WaitFor polls cond until it is true or timeout elapses.
func (s *Server) WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// Close drops all connections and stops the server.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}
