package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/chatlink/internal/api"
	"github.com/rickgao/chatlink/internal/eventbus"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/session"
)

type fakeSession struct {
	bus *eventbus.Bus

	mu        sync.Mutex
	connected bool
	room      string
	user      string
	sent      []string
	typing    []bool
	calls     []string
	auto      *bool
	queued    int
	switchErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{bus: eventbus.New(nil), connected: true, room: "general", user: "alice"}
}

func (f *fakeSession) call(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeSession) On(t eventbus.EventType, h eventbus.Handler) func() { return f.bus.On(t, h) }

func (f *fakeSession) Send(content, sender string, opts ...session.SendOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sender+":"+content)
	if !f.connected {
		f.queued++
	}
	return nil
}

func (f *fakeSession) SwitchRoom(roomID string) error {
	f.call("switch:" + roomID)
	if f.switchErr != nil {
		return f.switchErr
	}
	f.mu.Lock()
	f.room = roomID
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Typing(active bool) error {
	f.mu.Lock()
	f.typing = append(f.typing, active)
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Connect(ctx context.Context, roomID, username string, auto bool) error {
	f.call(fmt.Sprintf("connect:%s:%s:%t", roomID, username, auto))
	return nil
}

func (f *fakeSession) Leave() error             { f.call("leave"); return nil }
func (f *fakeSession) Ping() error              { f.call("ping"); return session.ErrNotConnected }
func (f *fakeSession) Disconnect(manual bool)   { f.call("disconnect") }
func (f *fakeSession) ResetReconnectAttempts()  { f.call("retry") }
func (f *fakeSession) Username() string         { return f.user }
func (f *fakeSession) RoomID() string           { return f.room }
func (f *fakeSession) SetAutoReconnect(on bool) { f.auto = &on }

func (f *fakeSession) ClearQueue() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.queued
	f.queued = 0
	return n
}

func (f *fakeSession) Health() session.Health {
	f.mu.Lock()
	defer f.mu.Unlock()
	return session.Health{Connected: f.connected, QueueSize: f.queued, RoomID: f.room, Username: f.user}
}

func (f *fakeSession) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeHistory struct {
	mu    sync.Mutex
	rooms []string
	msgs  []model.ChatMessage
	err   error
}

func (h *fakeHistory) AllRoomMessages(ctx context.Context, roomID string) ([]model.ChatMessage, error) {
	h.mu.Lock()
	h.rooms = append(h.rooms, roomID)
	h.mu.Unlock()
	return h.msgs, h.err
}

// syncBuffer is a bytes.Buffer safe for the console's writer goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestConsole(hist historyFetcher) (*console, *fakeSession, *syncBuffer) {
	sess := newFakeSession()
	out := &syncBuffer{}
	return newConsole(context.Background(), sess, hist, out, nil), sess, out
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"hello", command{arg: "hello"}},
		{"  hello there  ", command{arg: "hello there"}},
		{"/room 42", command{name: "room", arg: "42"}},
		{"/ROOM   42 ", command{name: "room", arg: "42"}},
		{"/quit", command{name: "quit"}},
		{"//shrug", command{arg: "/shrug"}},
		{"", command{}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := parseCommand(tt.line); got != tt.want {
				t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestConsole_SendsPlainText(t *testing.T) {
	con, sess, out := newTestConsole(nil)

	if con.handle("hi all") {
		t.Fatal("handle returned quit for plain text")
	}
	if len(sess.sent) != 1 || sess.sent[0] != "alice:hi all" {
		t.Errorf("sent = %v, want [alice:hi all]", sess.sent)
	}
	if out.String() != "" {
		t.Errorf("unexpected output %q", out.String())
	}

	con.handle("   ")
	if len(sess.sent) != 1 {
		t.Errorf("blank line was sent: %v", sess.sent)
	}
}

func TestConsole_OfflineSendReportsQueue(t *testing.T) {
	con, sess, out := newTestConsole(nil)
	sess.connected = false

	con.handle("later")
	if !strings.Contains(out.String(), "message queued (1 pending)") {
		t.Errorf("output = %q, want queued notice", out.String())
	}

	con.handle("/clear")
	if !strings.Contains(out.String(), "dropped 1 queued message(s)") {
		t.Errorf("output = %q, want clear notice", out.String())
	}
}

func TestConsole_Commands(t *testing.T) {
	con, sess, out := newTestConsole(nil)

	con.handle("/room lobby")
	con.handle("/typing on")
	con.handle("/typing off")
	con.handle("/typing maybe")
	con.handle("/ping")
	con.handle("/auto off")
	con.handle("/retry")
	con.handle("/bogus")

	if sess.room != "lobby" {
		t.Errorf("room = %q, want lobby", sess.room)
	}
	if len(sess.typing) != 2 || !sess.typing[0] || sess.typing[1] {
		t.Errorf("typing = %v, want [true false]", sess.typing)
	}
	if sess.auto == nil || *sess.auto {
		t.Errorf("auto = %v, want false", sess.auto)
	}

	text := out.String()
	for _, want := range []string{
		"usage: /typing on|off",
		"ping failed: " + session.ErrNotConnected.Error(),
		"auto-reconnect off",
		"reconnect attempts reset",
		"unknown command /bogus",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestConsole_RoomSwitchFailure(t *testing.T) {
	con, sess, out := newTestConsole(nil)
	sess.switchErr = errors.New("boom")

	con.handle("/room 9")
	if !strings.Contains(out.String(), "room switch failed: boom") {
		t.Errorf("output = %q", out.String())
	}

	con.handle("/room")
	if !strings.Contains(out.String(), "usage: /room <id>") {
		t.Errorf("output = %q, want usage", out.String())
	}
}

func TestConsole_Connect(t *testing.T) {
	con, sess, _ := newTestConsole(nil)

	con.handle("/connect")
	calls := sess.callList()
	// fakeSession.Health reports Reconnect.Enabled as false
	if len(calls) != 1 || calls[0] != "connect:general:alice:false" {
		t.Errorf("calls = %v, want [connect:general:alice:false]", calls)
	}
}

func TestConsole_Quit(t *testing.T) {
	con, sess, _ := newTestConsole(nil)

	if !con.handle("/quit") {
		t.Fatal("handle(/quit) = false, want true")
	}
	calls := sess.callList()
	if len(calls) != 2 || calls[0] != "leave" || calls[1] != "disconnect" {
		t.Errorf("calls = %v, want [leave disconnect]", calls)
	}
}

func TestConsole_RenderEvents(t *testing.T) {
	con, sess, out := newTestConsole(nil)
	detach := con.attach()

	stamp := "2024-01-15T10:00:00.000Z"
	sess.bus.Emit(eventbus.EventMessageReceived, eventbus.MessageReceivedData{
		Message: model.ChatMessage{SenderName: "bob", Content: "hey", MessageType: model.MessageChat, Timestamp: stamp},
	})
	sess.bus.Emit(eventbus.EventDisconnected, eventbus.DisconnectedData{Reason: eventbus.ReasonConnectionLost, Err: errors.New("eof")})
	sess.bus.Emit(eventbus.EventReconnectAttempt, eventbus.ReconnectAttemptData{Attempt: 2, MaxAttempts: 5, Delay: 4 * time.Second})
	sess.bus.Emit(eventbus.EventQueueFlushed, eventbus.QueueFlushedData{Sent: 3})
	sess.bus.Emit(eventbus.EventQueueFlushed, eventbus.QueueFlushedData{})
	sess.bus.Emit(eventbus.EventNotification, model.Notification{Body: []byte(`{"kind":"mention"}` + "\n")})

	text := out.String()
	for _, want := range []string{
		"bob: hey",
		"disconnected (connection_lost): eof",
		"reconnecting in 4s (attempt 2/5)",
		"delivered 3 queued message(s), 0 still pending",
		`notification: {"kind":"mention"}`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Count(text, "delivered") != 1 {
		t.Errorf("empty flush should not render:\n%s", text)
	}

	detach()
	if n := sess.bus.ListenerCount(eventbus.EventMessageReceived); n != 0 {
		t.Errorf("ListenerCount after detach = %d, want 0", n)
	}
}

func TestConsole_HistoryOnConnect(t *testing.T) {
	hist := &fakeHistory{msgs: []model.ChatMessage{
		{SenderName: "carol", Content: "earlier", MessageType: model.MessageChat},
		{SenderName: "dave", MessageType: model.MessageJoin},
	}}
	con, sess, out := newTestConsole(hist)
	con.attach()

	sess.bus.Emit(eventbus.EventConnected, eventbus.ConnectedData{RoomID: "general", Username: "alice"})
	con.wait()

	text := out.String()
	for _, want := range []string{
		"connected to room general as alice",
		"history for room general (2 messages)",
		"carol: earlier",
		"* dave joined",
		"end of history",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	sess.bus.Emit(eventbus.EventRoomSwitched, eventbus.RoomSwitchedData{OldRoomID: "general", NewRoomID: "ops"})
	con.wait()
	hist.mu.Lock()
	rooms := append([]string(nil), hist.rooms...)
	hist.mu.Unlock()
	if len(rooms) != 2 || rooms[1] != "ops" {
		t.Errorf("history rooms = %v, want [general ops]", rooms)
	}
}

func TestConsole_HistoryFailureIsLogged(t *testing.T) {
	hist := &fakeHistory{err: errors.New("down")}
	con, _, out := newTestConsole(hist)

	con.handle("/history")
	con.wait()
	if strings.Contains(out.String(), "history for room") {
		t.Errorf("failed history should not print, got %q", out.String())
	}
}

func TestConsole_HistoryUnknownRoom(t *testing.T) {
	hist := &fakeHistory{err: fmt.Errorf("get room messages: %w",
		&api.ServerError{StatusCode: 400, Message: "Room not found: 9"})}
	con, sess, out := newTestConsole(hist)
	con.attach()

	sess.bus.Emit(eventbus.EventConnected, eventbus.ConnectedData{RoomID: "9", Username: "alice"})
	con.wait()
	if !strings.Contains(out.String(), "room 9 does not exist on the server") {
		t.Errorf("output = %q, want unknown room notice", out.String())
	}
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  model.ChatMessage
		want string
	}{
		{"chat", model.ChatMessage{SenderName: "a", Content: "x", MessageType: model.MessageChat}, "a: x"},
		{"join", model.ChatMessage{SenderName: "a", MessageType: model.MessageJoin}, "* a joined"},
		{"leave", model.ChatMessage{SenderName: "a", MessageType: model.MessageLeave}, "* a left"},
		{"typing", model.ChatMessage{SenderName: "a", MessageType: model.MessageTyping}, "* a is typing..."},
		{"stop typing", model.ChatMessage{SenderName: "a", MessageType: model.MessageStopTyping}, "* a stopped typing"},
		{"system", model.ChatMessage{Content: "maintenance", MessageType: model.MessageSystem}, "* maintenance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatMessage(tt.msg, time.Time{}); got != tt.want {
				t.Errorf("formatMessage() = %q, want %q", got, tt.want)
			}
		})
	}

	stamped := formatMessage(model.ChatMessage{SenderName: "a", Content: "x", Timestamp: "2024-01-15T10:00:00.000Z"}, time.Time{})
	if !strings.HasPrefix(stamped, "[") || !strings.HasSuffix(stamped, "] a: x") {
		t.Errorf("formatMessage(stamped) = %q, want [hh:mm:ss] prefix", stamped)
	}
}
