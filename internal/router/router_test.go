package router

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/chatlink/internal/eventbus"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/stomp"
)

// staticClassifier maps subscription ids to kinds.
type staticClassifier map[string]model.DestinationKind

func (c staticClassifier) KindOf(id, _ string) model.DestinationKind {
	return c[id]
}

func newTestRouter() Router {
	return NewRouter(staticClassifier{
		"sub-room":  model.KindRoom,
		"sub-notif": model.KindNotification,
		"sub-hb":    model.KindHeartbeat,
	}, nil)
}

func messageFrame(sub, dest, body string) stomp.Frame {
	f := stomp.NewFrame(stomp.CmdMessage,
		stomp.HdrSubscription, sub,
		stomp.HdrDestination, dest,
	)
	f.Body = []byte(body)
	return f
}

func TestRouter_RoomMessage(t *testing.T) {
	r := newTestRouter()
	now := time.Now()

	body := `{"id":7,"roomId":1,"senderName":"alice","content":"hi","messageType":"chat","timestamp":"2026-01-01T12:00:00"}`
	routed := r.Route(messageFrame("sub-room", model.RoomTopic("1"), body), now)

	if routed.Type != eventbus.EventMessageReceived {
		t.Fatalf("Type = %q, want %q", routed.Type, eventbus.EventMessageReceived)
	}
	data, ok := routed.Data.(eventbus.MessageReceivedData)
	if !ok {
		t.Fatalf("Data = %T", routed.Data)
	}
	if data.Message.SenderName != "alice" || data.Message.Content != "hi" {
		t.Errorf("Message = %+v", data.Message)
	}
	if data.Message.MessageType != model.MessageChat {
		t.Errorf("MessageType = %q, want CHAT", data.Message.MessageType)
	}
	if data.Message.ID != 7 || data.Message.RoomID != 1 {
		t.Errorf("ID/RoomID = %d/%d", data.Message.ID, data.Message.RoomID)
	}
	if !data.ReceivedAt.Equal(now) {
		t.Errorf("ReceivedAt = %v, want %v", data.ReceivedAt, now)
	}
	if data.Destination != model.RoomTopic("1") {
		t.Errorf("Destination = %q", data.Destination)
	}

	if s := r.Stats(); s.Messages != 1 || s.FramesReceived != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRouter_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"invalid json", `{"senderName":`, errInvalidJSON},
		{"missing type", `{"senderName":"bob","content":"x"}`, errMissingMessageType},
		{"empty type", `{"senderName":"bob","messageType":""}`, errMissingMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter()
			routed := r.Route(messageFrame("sub-room", model.RoomTopic("1"), tt.body), time.Now())

			if routed.Type != eventbus.EventError {
				t.Fatalf("Type = %q, want error", routed.Type)
			}
			data := routed.Data.(eventbus.ErrorData)
			if data.Type != eventbus.ErrorMessageParse {
				t.Errorf("error type = %q, want message_parse", data.Type)
			}
			var pe *model.ParseError
			if !errors.As(data.Err, &pe) {
				t.Fatalf("Err = %v, want ParseError", data.Err)
			}
			if !errors.Is(data.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", data.Err, tt.wantErr)
			}
			if s := r.Stats(); s.ParseErrors != 1 {
				t.Errorf("ParseErrors = %d, want 1", s.ParseErrors)
			}
		})
	}
}

func TestRouter_Notification(t *testing.T) {
	r := newTestRouter()

	routed := r.Route(messageFrame("sub-notif", model.NotificationQueue("alice"), `{"type":"invite"}`), time.Now())
	if routed.Type != eventbus.EventNotification {
		t.Fatalf("Type = %q, want notification", routed.Type)
	}
	n := routed.Data.(model.Notification)
	if string(n.Body) != `{"type":"invite"}` {
		t.Errorf("Body = %q", n.Body)
	}
	if n.Destination != model.NotificationQueue("alice") {
		t.Errorf("Destination = %q", n.Destination)
	}
}

func TestRouter_HeartbeatAck(t *testing.T) {
	r := newTestRouter()

	routed := r.Route(messageFrame("sub-hb", model.HeartbeatQueue, `{"status":"ok"}`), time.Now())
	if routed.HasEvent() {
		t.Errorf("heartbeat ack should not produce an event, got %q", routed.Type)
	}
	if routed.Kind != model.KindHeartbeat {
		t.Errorf("Kind = %v, want heartbeat", routed.Kind)
	}
	if s := r.Stats(); s.HeartbeatAcks != 1 {
		t.Errorf("HeartbeatAcks = %d, want 1", s.HeartbeatAcks)
	}
}

func TestRouter_ServerError(t *testing.T) {
	r := newTestRouter()

	f := stomp.NewFrame(stomp.CmdError, stomp.HdrMessage, "access denied")
	routed := r.Route(f, time.Now())

	if routed.Type != eventbus.EventError {
		t.Fatalf("Type = %q, want error", routed.Type)
	}
	data := routed.Data.(eventbus.ErrorData)
	if data.Type != eventbus.ErrorServer {
		t.Errorf("error type = %q, want server", data.Type)
	}
	if !strings.Contains(data.Err.Error(), "access denied") {
		t.Errorf("Err = %v", data.Err)
	}
	if s := r.Stats(); s.ServerErrors != 1 {
		t.Errorf("ServerErrors = %d, want 1", s.ServerErrors)
	}
}

func TestRouter_UnknownAndReceipt(t *testing.T) {
	r := newTestRouter()

	if routed := r.Route(messageFrame("sub-x", "/topic/other", `{}`), time.Now()); routed.HasEvent() {
		t.Errorf("unknown subscription produced %q", routed.Type)
	}
	if routed := r.Route(stomp.NewFrame(stomp.CmdReceipt, stomp.HdrReceiptID, "r-1"), time.Now()); routed.HasEvent() {
		t.Errorf("receipt produced %q", routed.Type)
	}

	s := r.Stats()
	if s.Unknown != 1 {
		t.Errorf("Unknown = %d, want 1", s.Unknown)
	}
	if s.FramesReceived != 2 {
		t.Errorf("FramesReceived = %d, want 2", s.FramesReceived)
	}
}

func TestRouter_RouteMalformed(t *testing.T) {
	r := newTestRouter()

	routed := r.RouteMalformed([]byte("junk"), stomp.ErrMalformedFrame)
	if routed.Type != eventbus.EventError {
		t.Fatalf("Type = %q, want error", routed.Type)
	}
	data := routed.Data.(eventbus.ErrorData)
	if data.Type != eventbus.ErrorMessageParse || !errors.Is(data.Err, stomp.ErrMalformedFrame) {
		t.Errorf("Data = %+v", data)
	}
}
