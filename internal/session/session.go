package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/chatlink/internal/connection"
	"github.com/rickgao/chatlink/internal/eventbus"
	"github.com/rickgao/chatlink/internal/heartbeat"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/queue"
	"github.com/rickgao/chatlink/internal/reconnect"
	"github.com/rickgao/chatlink/internal/registry"
	"github.com/rickgao/chatlink/internal/router"
)

var (
	ErrConnectInFlight = errors.New("connection attempt already in progress")
	ErrConnectAborted  = errors.New("connection attempt aborted")
	ErrNotConnected    = errors.New("not connected")
	ErrDisposed        = errors.New("session disposed")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrEmptyRoom       = errors.New("room id is required")
	ErrEmptyUsername   = errors.New("username is required")
)

// sessionContext is replaced wholesale on Connect and SwitchRoom.
type sessionContext struct {
	roomID        string
	username      string
	autoReconnect bool
}

// Session is a resilient chat connection.
type Session struct {
	cfg       Config
	logger    *slog.Logger
	newClient ClientFactory
	now       func() time.Time

	bus       *eventbus.Bus
	queue     *queue.Queue
	registry  *registry.Registry
	monitor   *heartbeat.Monitor
	reconnect *reconnect.Controller
	router    router.Router

	mu            sync.Mutex
	state         State
	sctx          sessionContext
	client        connection.Client
	gen           uint64
	cancelAttempt context.CancelFunc
	pumpStop      chan struct{}
	disposed      bool

	// Events wait here until the mutex is released.
	outbox      []eventbus.Event
	dispatching bool
}

// New creates a disconnected session.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}

	reg := registry.New(logger)
	s := &Session{
		cfg:       cfg,
		logger:    logger.With("component", "session"),
		newClient: connection.NewClient,
		now:       time.Now,
		bus:       eventbus.New(logger),
		queue:     queue.New(),
		registry:  reg,
		monitor:   heartbeat.NewMonitor(cfg.Heartbeat, logger),
		reconnect: reconnect.NewController(cfg.Reconnect, logger),
		router:    router.NewRouter(reg, logger),
		sctx:      sessionContext{autoReconnect: cfg.Reconnect.Enabled},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// On registers a listener and returns its unsubscribe function.
func (s *Session) On(t eventbus.EventType, h eventbus.Handler) func() {
	return s.bus.On(t, h)
}

// Connect opens a fresh connection to roomID as username. Any existing
// transport is torn down first and the attempt counter is reset. Connect
// blocks until the handshake completes and subscriptions are active, or
// until it fails. On failure with autoReconnect set, retries continue in
// the background and the first error is returned.
func (s *Session) Connect(ctx context.Context, roomID, username string, autoReconnect bool) error {
	roomID = strings.TrimSpace(roomID)
	username = strings.TrimSpace(username)
	if roomID == "" {
		return ErrEmptyRoom
	}
	if username == "" {
		return ErrEmptyUsername
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.state == StateConnecting {
		s.mu.Unlock()
		return ErrConnectInFlight
	}

	s.reconnect.Cancel()
	s.reconnect.Reset()
	s.reconnect.SetEnabled(autoReconnect)
	s.teardownLocked()

	s.sctx = sessionContext{
		roomID:        roomID,
		username:      username,
		autoReconnect: autoReconnect,
	}
	gen, hctx, cancel := s.beginAttemptLocked(ctx)
	s.mu.Unlock()
	s.dispatch()

	return s.dial(hctx, cancel, gen, false)
}

// beginAttemptLocked moves to Connecting and returns the attempt's
// generation and handshake context.
func (s *Session) beginAttemptLocked(parent context.Context) (uint64, context.Context, context.CancelFunc) {
	s.setStateLocked(StateConnecting)
	s.gen++
	hctx, cancel := context.WithTimeout(parent, s.cfg.HandshakeTimeout)
	s.cancelAttempt = cancel
	return s.gen, hctx, cancel
}

// dial runs one connection attempt outside the mutex.
func (s *Session) dial(hctx context.Context, cancel context.CancelFunc, gen uint64, recovery bool) error {
	defer cancel()

	client := s.newClient(s.cfg.clientConfig(), s.logger)
	bound := handshakeBound(hctx, time.Now(), s.cfg.HandshakeTimeout)
	err := client.Connect(hctx)
	timedOut := hctx.Err() == context.DeadlineExceeded

	s.mu.Lock()
	if gen != s.gen || s.disposed {
		s.mu.Unlock()
		client.Close()
		return ErrConnectAborted
	}
	s.cancelAttempt = nil

	if err != nil {
		client.Close()
		var cerr error
		if timedOut {
			cerr = &model.TimeoutError{Op: "stomp handshake", Timeout: bound}
		} else {
			cerr = &model.ConnectionError{Op: "connect", Err: err}
		}
		s.logger.Warn("connection attempt failed", "error", cerr, "recovery", recovery)
		s.failConnectLocked(cerr)
		s.mu.Unlock()
		s.dispatch()
		return cerr
	}

	s.client = client
	s.establishLocked(gen, recovery)
	s.mu.Unlock()
	s.dispatch()
	return nil
}

// handshakeBound is the time an attempt starting at start actually has:
// the configured timeout, or less when the caller's deadline is earlier.
func handshakeBound(hctx context.Context, start time.Time, configured time.Duration) time.Duration {
	dl, ok := hctx.Deadline()
	if !ok {
		return configured
	}
	if d := dl.Sub(start); d < configured {
		return d.Round(time.Millisecond)
	}
	return configured
}

// establishLocked finishes a successful handshake: subscriptions,
// presence, liveness monitoring, inbound pump, and queue replay.
func (s *Session) establishLocked(gen uint64, recovery bool) {
	client := s.client
	room := s.sctx.roomID
	user := s.sctx.username

	if _, err := s.registry.SwitchRoom(client, model.RoomTopic(room)); err != nil {
		s.emitSubscriptionErrorLocked(err)
	}
	if _, err := s.registry.Subscribe(client, model.NotificationQueue(user), model.KindNotification); err != nil {
		s.emitSubscriptionErrorLocked(err)
	}
	if _, err := s.registry.Subscribe(client, model.HeartbeatQueue, model.KindHeartbeat); err != nil {
		s.emitSubscriptionErrorLocked(err)
	}

	s.announceLocked(model.MessageJoin, model.JoinDestination(room))

	s.reconnect.Reset()
	s.setStateLocked(StateConnected)

	s.monitor.Start(func(lastSeenAt time.Time, timeout time.Duration) {
		s.onHeartbeatTimeout(gen, lastSeenAt, timeout)
	})

	stop := make(chan struct{})
	s.pumpStop = stop
	go s.pump(client, gen, stop)

	s.flushLocked()

	s.logger.Info("connected", "room", room, "username", user, "recovery", recovery)
	s.emitLocked(eventbus.EventConnected, eventbus.ConnectedData{
		RoomID:    room,
		Username:  user,
		Recovered: recovery,
	})
	if recovery {
		s.emitLocked(eventbus.EventReconnected, eventbus.ReconnectedData{
			RoomID:   room,
			Username: user,
		})
	}
}

func (s *Session) emitSubscriptionErrorLocked(err error) {
	var subErr *model.SubscriptionError
	dest := ""
	if errors.As(err, &subErr) {
		dest = subErr.Destination
	}
	s.logger.Warn("subscription failed", "destination", dest, "error", err)
	s.emitLocked(eventbus.EventError, eventbus.ErrorData{
		Type:        eventbus.ErrorSubscription,
		Destination: dest,
		Err:         err,
	})
}

// failConnectLocked handles a failed handshake.
func (s *Session) failConnectLocked(err error) {
	s.emitLocked(eventbus.EventError, eventbus.ErrorData{
		Type: eventbus.ErrorConnection,
		Err:  err,
	})

	if s.reconnect.Enabled() {
		s.scheduleReconnectLocked()
		return
	}
	s.setStateLocked(StateDisconnected)
	s.emitLocked(eventbus.EventDisconnected, eventbus.DisconnectedData{
		Reason: eventbus.ReasonConnectFailed,
		Err:    err,
	})
}

// scheduleReconnectLocked arms the next retry, or gives up.
func (s *Session) scheduleReconnectLocked() {
	attempt, delay, ok := s.reconnect.Next()
	if !ok {
		s.logger.Error("reconnect attempts exhausted", "attempts", attempt)
		s.setStateLocked(StateBroken)
		s.emitLocked(eventbus.EventDisconnected, eventbus.DisconnectedData{
			Reason: eventbus.ReasonReconnectFailed,
		})
		return
	}

	s.setStateLocked(StateReconnecting)
	status := s.reconnect.Status()
	s.logger.Info("scheduling reconnect", "attempt", attempt, "max_attempts", status.MaxAttempts, "delay", delay)
	s.emitLocked(eventbus.EventReconnectAttempt, eventbus.ReconnectAttemptData{
		Attempt:     attempt,
		MaxAttempts: status.MaxAttempts,
		Delay:       delay,
	})
	s.reconnect.Schedule(delay, s.onRetryTimer)
}

// onRetryTimer runs a scheduled reconnect with the stored context.
func (s *Session) onRetryTimer(token uint64) {
	s.mu.Lock()
	if !s.reconnect.Claim(token) || s.disposed || s.state != StateReconnecting {
		s.mu.Unlock()
		return
	}
	gen, hctx, cancel := s.beginAttemptLocked(context.Background())
	s.mu.Unlock()
	s.dispatch()

	s.dial(hctx, cancel, gen, true)
}

// teardownLocked stops liveness monitoring, clears subscriptions and
// closes the transport. It invalidates callbacks from the old connection.
func (s *Session) teardownLocked() {
	s.monitor.Stop()

	if s.pumpStop != nil {
		close(s.pumpStop)
		s.pumpStop = nil
	}
	if s.cancelAttempt != nil {
		s.cancelAttempt()
		s.cancelAttempt = nil
	}

	client := s.client
	s.client = nil
	if client != nil {
		if client.IsConnected() {
			s.registry.Clear(client)
		} else {
			s.registry.Clear(nil)
		}
		if err := client.Close(); err != nil {
			s.logger.Debug("close transport", "error", err)
		}
	} else {
		s.registry.Clear(nil)
	}

	s.gen++
}

// pump forwards inbound traffic from one transport into the session.
func (s *Session) pump(client connection.Client, gen uint64, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case in := <-client.Frames():
			s.handleInbound(gen, in)
		case err := <-client.Errors():
			// Frames read before the failure are still buffered; deliver
			// them before reporting the loss.
		drain:
			for {
				select {
				case in := <-client.Frames():
					s.handleInbound(gen, in)
				default:
					break drain
				}
			}
			s.onTransportClosed(gen, err)
			return
		}
	}
}

func (s *Session) handleInbound(gen uint64, in connection.InboundFrame) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnected {
		s.mu.Unlock()
		return
	}

	s.monitor.TouchAt(in.ReceivedAt)

	var routed router.Routed
	switch {
	case in.Heartbeat:
	case in.Err != nil:
		routed = s.router.RouteMalformed(in.Raw, in.Err)
	default:
		routed = s.router.Route(in.Frame, in.ReceivedAt)
	}
	if routed.HasEvent() {
		s.emitLocked(routed.Type, routed.Data)
	}
	s.mu.Unlock()
	s.dispatch()
}

func (s *Session) onTransportClosed(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnected {
		s.mu.Unlock()
		return
	}

	s.logger.Warn("transport closed", "error", err)
	s.teardownLocked()
	s.emitLocked(eventbus.EventDisconnected, eventbus.DisconnectedData{
		Reason: eventbus.ReasonConnectionLost,
		Err:    &model.ConnectionError{Op: "read", Err: err},
	})
	s.recoverLocked()
	s.mu.Unlock()
	s.dispatch()
}

func (s *Session) onHeartbeatTimeout(gen uint64, lastSeenAt time.Time, timeout time.Duration) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnected {
		s.mu.Unlock()
		return
	}

	s.emitLocked(eventbus.EventHeartbeatTimeout, eventbus.HeartbeatTimeoutData{
		LastSeenAt: lastSeenAt,
		Timeout:    timeout,
	})
	s.teardownLocked()
	s.emitLocked(eventbus.EventDisconnected, eventbus.DisconnectedData{
		Reason: eventbus.ReasonHeartbeatTimeout,
	})
	s.recoverLocked()
	s.mu.Unlock()
	s.dispatch()
}

// recoverLocked follows a lost connection: retry if enabled, otherwise stop.
func (s *Session) recoverLocked() {
	if s.reconnect.Enabled() {
		s.scheduleReconnectLocked()
		return
	}
	s.setStateLocked(StateDisconnected)
}

// Disconnect tears down the connection. It is idempotent and safe from
// any state. A manual disconnect also resets the attempt counter. Neither
// kind schedules a reconnect.
func (s *Session) Disconnect(manual bool) {
	s.mu.Lock()
	s.disconnectLocked(manual)
	s.mu.Unlock()
	s.dispatch()
}

func (s *Session) disconnectLocked(manual bool) {
	prev := s.state

	s.reconnect.Cancel()
	if manual {
		s.reconnect.Reset()
	}
	s.teardownLocked()

	switch {
	case prev.active():
		s.setStateLocked(StateDisconnected)
		reason := eventbus.ReasonAuto
		if manual {
			reason = eventbus.ReasonManual
		}
		s.logger.Info("disconnected", "reason", reason)
		s.emitLocked(eventbus.EventDisconnected, eventbus.DisconnectedData{Reason: reason})
	case prev == StateBroken:
		s.setStateLocked(StateDisconnected)
	}
}

// Dispose disconnects, drops every listener and rejects further Connect
// calls.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disconnectLocked(true)
	s.disposed = true
	s.mu.Unlock()

	s.dispatch()
	s.bus.Clear()
}

// SwitchRoom moves the connected session to roomID. The old room
// subscription is dropped before the new one is added. If the new
// subscription fails the session has no room subscription; with
// auto-reconnect enabled a full reconnect is forced, otherwise the session
// stays connected and the caller may retry.
func (s *Session) SwitchRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrEmptyRoom
	}

	s.mu.Lock()
	if s.state != StateConnected || s.client == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}

	oldRoom := s.sctx.roomID
	if roomID == oldRoom {
		s.mu.Unlock()
		return nil
	}

	s.sctx = sessionContext{
		roomID:        roomID,
		username:      s.sctx.username,
		autoReconnect: s.sctx.autoReconnect,
	}

	if _, err := s.registry.SwitchRoom(s.client, model.RoomTopic(roomID)); err != nil {
		s.logger.Error("room switch failed", "old_room", oldRoom, "new_room", roomID, "error", err)
		s.emitLocked(eventbus.EventError, eventbus.ErrorData{
			Type:        eventbus.ErrorRoomSwitch,
			Destination: model.RoomTopic(roomID),
			Err:         err,
		})
		if s.reconnect.Enabled() {
			s.teardownLocked()
			s.emitLocked(eventbus.EventDisconnected, eventbus.DisconnectedData{
				Reason: eventbus.ReasonAuto,
				Err:    err,
			})
			s.scheduleReconnectLocked()
		}
		s.mu.Unlock()
		s.dispatch()
		return err
	}

	s.announceLocked(model.MessageJoin, model.JoinDestination(roomID))
	s.logger.Info("room switched", "old_room", oldRoom, "new_room", roomID)
	s.emitLocked(eventbus.EventRoomSwitched, eventbus.RoomSwitchedData{
		OldRoomID: oldRoom,
		NewRoomID: roomID,
	})
	s.mu.Unlock()
	s.dispatch()
	return nil
}

// SetAutoReconnect toggles auto-reconnect. Whether a pending retry timer
// survives being disabled depends on Reconnect.CancelPendingOnDisable.
func (s *Session) SetAutoReconnect(enabled bool) {
	s.mu.Lock()
	s.sctx.autoReconnect = enabled
	cancelled := s.reconnect.SetEnabled(enabled)
	if cancelled && s.state == StateReconnecting {
		s.setStateLocked(StateDisconnected)
		s.emitLocked(eventbus.EventDisconnected, eventbus.DisconnectedData{Reason: eventbus.ReasonAuto})
	}
	s.mu.Unlock()
	s.dispatch()
}

// SetMaxReconnectAttempts changes the retry limit.
func (s *Session) SetMaxReconnectAttempts(n int) {
	s.reconnect.SetMaxAttempts(n)
}

// SetReconnectDelay changes the base backoff delay.
func (s *Session) SetReconnectDelay(d time.Duration) {
	s.reconnect.SetBaseDelay(d)
}

// ResetReconnectAttempts sets the attempt counter back to zero.
func (s *Session) ResetReconnectAttempts() {
	s.reconnect.Reset()
}

func (s *Session) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.logger.Debug("state change", "from", from, "to", to)
	s.emitLocked(eventbus.EventStateChanged, eventbus.StateChangedData{
		From: from.String(),
		To:   to.String(),
	})
}

func (s *Session) emitLocked(t eventbus.EventType, data any) {
	s.outbox = append(s.outbox, eventbus.NewEvent(t, data))
}

// dispatch delivers queued events outside the mutex. Only one goroutine
// delivers at a time, which keeps delivery in emission order.
func (s *Session) dispatch() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()

		for _, e := range batch {
			s.bus.Publish(e)
		}

		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
}
