package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/chatlink/internal/api"
	"github.com/rickgao/chatlink/internal/eventbus"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/session"
)

// chatSession is the session surface the console drives.
type chatSession interface {
	On(t eventbus.EventType, h eventbus.Handler) func()
	Connect(ctx context.Context, roomID, username string, autoReconnect bool) error
	Send(content, sender string, opts ...session.SendOption) error
	SwitchRoom(roomID string) error
	Typing(active bool) error
	Leave() error
	Ping() error
	Disconnect(manual bool)
	SetAutoReconnect(enabled bool)
	ResetReconnectAttempts()
	ClearQueue() int
	Username() string
	RoomID() string
	Health() session.Health
}

// historyFetcher loads a room's stored messages.
type historyFetcher interface {
	AllRoomMessages(ctx context.Context, roomID string) ([]model.ChatMessage, error)
}

// command is one parsed input line.
type command struct {
	name string // empty for plain chat text
	arg  string
}

func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || strings.HasPrefix(line, "//") {
		// "//text" sends "/text" literally.
		return command{arg: strings.TrimPrefix(line, "/")}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

const helpText = `commands:
  /room <id>        switch room
  /connect          start a fresh connection
  /typing on|off    send a typing indicator
  /ping             send an application ping
  /leave            announce leaving the room
  /auto on|off      toggle automatic reconnection
  /retry            reset the reconnect budget
  /clear            drop queued messages
  /history          reload room history
  /status           show connection health
  /quit             leave and disconnect
  //text            send text starting with a slash`

// console renders session events and executes user input.
type console struct {
	ctx     context.Context
	sess    chatSession
	history historyFetcher
	logger  *slog.Logger

	mu  sync.Mutex
	out io.Writer

	historyWG sync.WaitGroup
}

func newConsole(ctx context.Context, sess chatSession, history historyFetcher, out io.Writer, logger *slog.Logger) *console {
	if logger == nil {
		logger = slog.Default()
	}
	return &console{
		ctx:     ctx,
		sess:    sess,
		history: history,
		logger:  logger,
		out:     out,
	}
}

// attach registers render listeners and returns a function removing them.
func (c *console) attach() func() {
	types := []eventbus.EventType{
		eventbus.EventConnected,
		eventbus.EventDisconnected,
		eventbus.EventReconnectAttempt,
		eventbus.EventReconnected,
		eventbus.EventHeartbeatTimeout,
		eventbus.EventMessageReceived,
		eventbus.EventMessageSendFailed,
		eventbus.EventNotification,
		eventbus.EventError,
		eventbus.EventRoomSwitched,
		eventbus.EventQueueFlushed,
	}
	offs := make([]func(), 0, len(types))
	for _, t := range types {
		offs = append(offs, c.sess.On(t, c.render))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) render(e eventbus.Event) {
	switch d := e.Data.(type) {
	case eventbus.ConnectedData:
		c.printf("*** connected to room %s as %s", d.RoomID, d.Username)
		c.loadHistory(d.RoomID)
	case eventbus.ReconnectedData:
		c.printf("*** connection restored")
	case eventbus.DisconnectedData:
		if d.Err != nil {
			c.printf("*** disconnected (%s): %v", d.Reason, d.Err)
		} else {
			c.printf("*** disconnected (%s)", d.Reason)
		}
	case eventbus.ReconnectAttemptData:
		c.printf("*** reconnecting in %s (attempt %d/%d)", d.Delay, d.Attempt, d.MaxAttempts)
	case eventbus.HeartbeatTimeoutData:
		c.printf("*** no traffic from server for %s", d.Timeout)
	case eventbus.MessageReceivedData:
		c.printf("%s", formatMessage(d.Message, d.ReceivedAt))
	case eventbus.MessageSendFailedData:
		c.printf("*** could not send %q: %v", d.Content, d.Err)
	case model.Notification:
		c.printf("*** notification: %s", strings.TrimSpace(string(d.Body)))
	case eventbus.ErrorData:
		c.printf("*** error (%s): %v", d.Type, d.Err)
	case eventbus.RoomSwitchedData:
		c.printf("*** switched from room %s to %s", d.OldRoomID, d.NewRoomID)
		c.loadHistory(d.NewRoomID)
	case eventbus.QueueFlushedData:
		if d.Sent > 0 || d.Failed > 0 {
			c.printf("*** delivered %d queued message(s), %d still pending", d.Sent, d.Failed)
		}
	default:
		c.logger.Debug("unrendered event", "type", e.Type)
	}
}

// loadHistory fetches a room's history in the background.
func (c *console) loadHistory(roomID string) {
	if c.history == nil || roomID == "" {
		return
	}
	c.historyWG.Add(1)
	go func() {
		defer c.historyWG.Done()
		msgs, err := c.history.AllRoomMessages(c.ctx, roomID)
		if errors.Is(err, api.ErrRoomNotFound) {
			c.mu.Lock()
			fmt.Fprintf(c.out, "--- room %s does not exist on the server ---\n", roomID)
			c.mu.Unlock()
			return
		}
		if err != nil {
			c.logger.Warn("failed to load room history", "room", roomID, "error", err)
			return
		}
		c.printHistory(roomID, msgs)
	}()
}

func (c *console) printHistory(roomID string, msgs []model.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(msgs) == 0 {
		fmt.Fprintf(c.out, "--- no history in room %s ---\n", roomID)
		return
	}
	fmt.Fprintf(c.out, "--- history for room %s (%d messages) ---\n", roomID, len(msgs))
	for _, m := range msgs {
		fmt.Fprintln(c.out, formatMessage(m, time.Time{}))
	}
	fmt.Fprintln(c.out, "--- end of history ---")
}

// handle executes one input line and reports whether the user asked to quit.
func (c *console) handle(line string) (quit bool) {
	cmd := parseCommand(line)
	switch cmd.name {
	case "":
		if cmd.arg == "" {
			return false
		}
		if err := c.sess.Send(cmd.arg, c.sess.Username()); err != nil {
			c.printf("*** send failed: %v", err)
			return false
		}
		if h := c.sess.Health(); !h.Connected {
			c.printf("*** offline, message queued (%d pending)", h.QueueSize)
		}
	case "room", "join":
		if cmd.arg == "" {
			c.printf("*** usage: /room <id>")
			return false
		}
		if err := c.sess.SwitchRoom(cmd.arg); err != nil {
			c.printf("*** room switch failed: %v", err)
		}
	case "connect", "reconnect":
		h := c.sess.Health()
		if err := c.sess.Connect(c.ctx, h.RoomID, h.Username, h.Reconnect.Enabled); err != nil {
			c.printf("*** connect failed: %v", err)
		}
	case "typing":
		active, ok := parseOnOff(cmd.arg)
		if !ok {
			c.printf("*** usage: /typing on|off")
			return false
		}
		c.report("typing", c.sess.Typing(active))
	case "ping":
		c.report("ping", c.sess.Ping())
	case "leave":
		c.report("leave", c.sess.Leave())
	case "auto":
		enabled, ok := parseOnOff(cmd.arg)
		if !ok {
			c.printf("*** usage: /auto on|off")
			return false
		}
		c.sess.SetAutoReconnect(enabled)
		c.printf("*** auto-reconnect %s", onOff(enabled))
	case "retry":
		c.sess.ResetReconnectAttempts()
		c.printf("*** reconnect attempts reset")
	case "clear":
		c.printf("*** dropped %d queued message(s)", c.sess.ClearQueue())
	case "history":
		c.loadHistory(c.sess.RoomID())
	case "status":
		h := c.sess.Health()
		c.printf("*** state=%s room=%s user=%s queued=%d attempt=%d/%d healthy=%t",
			h.State, h.RoomID, h.Username, h.QueueSize,
			h.Reconnect.Attempt, h.Reconnect.MaxAttempts, h.Healthy)
	case "quit", "exit":
		if err := c.sess.Leave(); err != nil {
			c.logger.Debug("leave before quit failed", "error", err)
		}
		c.sess.Disconnect(true)
		return true
	case "help":
		c.printf("%s", helpText)
	default:
		c.printf("*** unknown command /%s (try /help)", cmd.name)
	}
	return false
}

func (c *console) report(what string, err error) {
	if err != nil {
		c.printf("*** %s failed: %v", what, err)
	}
}

// wait blocks until in-flight history loads finish.
func (c *console) wait() {
	c.historyWG.Wait()
}

func parseOnOff(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, true
	case "off", "false", "no", "0":
		return false, true
	}
	return false, false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// formatMessage renders one chat envelope as a console line.
func formatMessage(m model.ChatMessage, fallback time.Time) string {
	stamp := messageTime(m, fallback)
	prefix := ""
	if !stamp.IsZero() {
		prefix = "[" + stamp.Local().Format("15:04:05") + "] "
	}

	switch m.MessageType {
	case model.MessageJoin:
		return prefix + "* " + m.SenderName + " joined"
	case model.MessageLeave:
		return prefix + "* " + m.SenderName + " left"
	case model.MessageTyping:
		return prefix + "* " + m.SenderName + " is typing..."
	case model.MessageStopTyping:
		return prefix + "* " + m.SenderName + " stopped typing"
	case model.MessageSystem:
		return prefix + "* " + m.Content
	default:
		return prefix + m.SenderName + ": " + m.Content
	}
}

func messageTime(m model.ChatMessage, fallback time.Time) time.Time {
	for _, s := range []string{m.Timestamp, m.CreatedAt} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return fallback
}
