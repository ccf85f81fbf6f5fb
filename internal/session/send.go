package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickgao/chatlink/internal/eventbus"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/queue"
)

type sendOptions struct {
	messageType model.MessageType
	queue       bool
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithMessageType overrides the default CHAT message type.
func WithMessageType(t model.MessageType) SendOption {
	return func(o *sendOptions) { o.messageType = t }
}

// WithoutQueue makes Send fail instead of queueing when not connected.
func WithoutQueue() SendOption {
	return func(o *sendOptions) { o.queue = false }
}

// Send publishes content to the current room. A nil error means the
// message was handed to the transport or queued for replay. While not
// connected the message is queued; if the transport fails mid-send the
// message is queued and message_send_failed is emitted.
func (s *Session) Send(content, sender string, opts ...SendOption) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	o := sendOptions{messageType: model.MessageChat, queue: true}
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}

	if s.state != StateConnected || s.client == nil {
		if !o.queue {
			s.mu.Unlock()
			return ErrNotConnected
		}
		depth := s.queue.Enqueue(content, sender, o.messageType)
		s.logger.Debug("message queued", "depth", depth, "state", s.state)
		if s.state == StateReconnecting && !s.reconnect.Pending() {
			s.scheduleReconnectLocked()
		}
		s.mu.Unlock()
		s.dispatch()
		return nil
	}

	msg := model.NewChatMessage(sender, content, o.messageType, s.now())
	dest := destinationFor(o.messageType, s.sctx.roomID)
	if err := s.publishLocked(dest, msg); err != nil {
		serr := &model.SendError{Destination: dest, Err: err}
		if !o.queue {
			s.mu.Unlock()
			return serr
		}
		s.queue.Enqueue(content, sender, o.messageType)
		s.logger.Warn("send failed, message queued", "destination", dest, "error", err)
		s.emitSendFailureLocked(content, sender, o.messageType, serr)
		s.mu.Unlock()
		s.dispatch()
		return nil
	}

	s.emitLocked(eventbus.EventMessageSent, eventbus.MessageSentData{
		Message:     msg,
		Destination: dest,
	})
	s.mu.Unlock()
	s.dispatch()
	return nil
}

// flushLocked replays the outbound queue in order. The queue is drained
// before sending, so failures are appended behind anything queued since.
func (s *Session) flushLocked() {
	batch := s.queue.Drain()
	if len(batch) == 0 {
		return
	}

	sent, failed := 0, 0
	for _, m := range batch {
		msg := model.NewChatMessage(m.Sender, m.Content, m.MessageType, s.now())
		msg.IsQueuedMessage = true
		dest := destinationFor(m.MessageType, s.sctx.roomID)

		if err := s.publishLocked(dest, msg); err != nil {
			failed++
			s.queue.Requeue(m)
			s.emitSendFailureLocked(m.Content, m.Sender, m.MessageType, &model.SendError{Destination: dest, Err: err})
			continue
		}

		sent++
		s.emitLocked(eventbus.EventMessageSent, eventbus.MessageSentData{
			Message:     msg,
			Destination: dest,
			FromQueue:   true,
		})
	}

	s.logger.Info("queue flushed", "sent", sent, "failed", failed)
	s.emitLocked(eventbus.EventQueueFlushed, eventbus.QueueFlushedData{Sent: sent, Failed: failed})
}

// emitSendFailureLocked reports a message the transport refused: once as
// message_send_failed for the message itself and once as a send error.
func (s *Session) emitSendFailureLocked(content, sender string, t model.MessageType, serr *model.SendError) {
	s.emitLocked(eventbus.EventMessageSendFailed, eventbus.MessageSendFailedData{
		Content:     content,
		Sender:      sender,
		MessageType: t,
		Err:         serr,
	})
	s.emitLocked(eventbus.EventError, eventbus.ErrorData{
		Type:        eventbus.ErrorSend,
		Destination: serr.Destination,
		Err:         serr,
	})
}

// publishLocked marshals v and sends it on the live transport.
func (s *Session) publishLocked(dest string, v any) error {
	if s.client == nil {
		return ErrNotConnected
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return s.client.Send(dest, body)
}

// announceLocked sends a presence envelope. Failures are logged only.
func (s *Session) announceLocked(t model.MessageType, dest string) {
	if !s.cfg.AnnouncePresence {
		return
	}
	msg := model.NewChatMessage(s.sctx.username, "", t, s.now())
	if err := s.publishLocked(dest, msg); err != nil {
		s.logger.Warn("presence announcement failed", "type", t, "destination", dest, "error", err)
	}
}

// Typing sends a typing indicator for the current user. Indicators are
// never queued.
func (s *Session) Typing(active bool) error {
	t, dest := model.MessageStopTyping, model.StopTypingDestination
	if active {
		t, dest = model.MessageTyping, model.TypingDestination
	}
	return s.sendControl(t, dest)
}

// Leave announces that the current user is leaving the room.
func (s *Session) Leave() error {
	return s.sendControl(model.MessageLeave, model.LeaveDestination)
}

func (s *Session) sendControl(t model.MessageType, destFn func(string) string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return ErrNotConnected
	}
	dest := destFn(s.sctx.roomID)
	msg := model.NewChatMessage(s.sctx.username, "", t, s.now())
	if err := s.publishLocked(dest, msg); err != nil {
		return &model.SendError{Destination: dest, Err: err}
	}
	return nil
}

// Ping sends an application-level ping.
func (s *Session) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return ErrNotConnected
	}
	ping := model.PingMessage{Timestamp: s.now().UnixMilli()}
	if err := s.publishLocked(model.PingDestination, ping); err != nil {
		return &model.SendError{Destination: model.PingDestination, Err: err}
	}
	return nil
}

// ClearQueue discards every queued message and returns how many were dropped.
func (s *Session) ClearQueue() int {
	n := s.queue.Clear()
	if n > 0 {
		s.logger.Warn("outbound queue cleared", "dropped", n)
	}
	return n
}

// QueuedMessages returns a copy of the outbound queue.
func (s *Session) QueuedMessages() []queue.QueuedMessage {
	return s.queue.Snapshot()
}

// destinationFor maps a message type to its room destination.
func destinationFor(t model.MessageType, roomID string) string {
	switch t {
	case model.MessageJoin:
		return model.JoinDestination(roomID)
	case model.MessageLeave:
		return model.LeaveDestination(roomID)
	case model.MessageTyping:
		return model.TypingDestination(roomID)
	case model.MessageStopTyping:
		return model.StopTypingDestination(roomID)
	default:
		return model.SendDestination(roomID)
	}
}
