package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rickgao/chatlink/internal/eventbus"
	"github.com/rickgao/chatlink/internal/model"
	"github.com/rickgao/chatlink/internal/stomp"
)

var (
	errInvalidJSON        = errors.New("invalid JSON body")
	errMissingMessageType = errors.New("missing messageType")
)

// Router classifies inbound frames.
type Router interface {
	// Route converts a parsed frame into an event.
	Route(f stomp.Frame, receivedAt time.Time) Routed

	// RouteMalformed converts an unparseable frame into a parse error event.
	RouteMalformed(raw []byte, err error) Routed

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	classifier Classifier
	logger     *slog.Logger

	mu            sync.RWMutex
	received      int64
	messages      int64
	notifications int64
	heartbeatAcks int64
	serverErrors  int64
	parseErrors   int64
	unknown       int64
}

// NewRouter creates a new inbound router.
func NewRouter(classifier Classifier, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &router{
		classifier: classifier,
		logger:     logger.With("component", "router"),
	}
}

// Route converts f into an event according to its subscription kind.
func (r *router) Route(f stomp.Frame, receivedAt time.Time) Routed {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	switch f.Command {
	case stomp.CmdMessage:
		// handled below
	case stomp.CmdError:
		return r.routeServerError(f)
	case stomp.CmdReceipt:
		return Routed{}
	default:
		r.count(&r.unknown)
		r.logger.Debug("skipping frame", "command", f.Command)
		return Routed{}
	}

	dest := f.Get(stomp.HdrDestination)
	kind := r.classifier.KindOf(f.Get(stomp.HdrSubscription), dest)

	switch kind {
	case model.KindRoom:
		msg, err := parseChatMessage(f.Body)
		if err != nil {
			return r.parseFailure(dest, err)
		}
		r.count(&r.messages)
		return Routed{
			Type: eventbus.EventMessageReceived,
			Kind: kind,
			Data: eventbus.MessageReceivedData{
				Message:     msg,
				Destination: dest,
				ReceivedAt:  receivedAt,
			},
		}

	case model.KindNotification:
		r.count(&r.notifications)
		return Routed{
			Type: eventbus.EventNotification,
			Kind: kind,
			Data: model.Notification{
				Destination: dest,
				Body:        f.Body,
				ReceivedAt:  receivedAt,
			},
		}

	case model.KindHeartbeat:
		r.count(&r.heartbeatAcks)
		return Routed{Kind: kind}

	default:
		r.count(&r.unknown)
		r.logger.Debug("frame for unknown subscription",
			"destination", dest,
			"subscription", f.Get(stomp.HdrSubscription),
		)
		return Routed{}
	}
}

// RouteMalformed reports a frame that could not be decoded at all.
func (r *router) RouteMalformed(raw []byte, err error) Routed {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	r.logger.Debug("malformed frame", "size", len(raw))
	return r.parseFailure("", err)
}

func (r *router) routeServerError(f stomp.Frame) Routed {
	r.count(&r.serverErrors)

	msg := f.Get(stomp.HdrMessage)
	if msg == "" {
		msg = string(f.Body)
	}
	r.logger.Warn("server error frame", "message", msg)

	return Routed{
		Type: eventbus.EventError,
		Data: eventbus.ErrorData{
			Type: eventbus.ErrorServer,
			Err:  fmt.Errorf("server error: %s", msg),
		},
	}
}

func (r *router) parseFailure(dest string, err error) Routed {
	r.count(&r.parseErrors)
	r.logger.Warn("failed to parse message", "destination", dest, "error", err)

	return Routed{
		Type: eventbus.EventError,
		Data: eventbus.ErrorData{
			Type:        eventbus.ErrorMessageParse,
			Destination: dest,
			Err:         &model.ParseError{Destination: dest, Err: err},
		},
	}
}

func (r *router) count(c *int64) {
	r.mu.Lock()
	*c++
	r.mu.Unlock()
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		FramesReceived: r.received,
		Messages:       r.messages,
		Notifications:  r.notifications,
		HeartbeatAcks:  r.heartbeatAcks,
		ServerErrors:   r.serverErrors,
		ParseErrors:    r.parseErrors,
		Unknown:        r.unknown,
	}
}

// parseChatMessage validates the envelope cheaply before a full decode.
func parseChatMessage(body []byte) (model.ChatMessage, error) {
	if !gjson.ValidBytes(body) {
		return model.ChatMessage{}, errInvalidJSON
	}
	if t := gjson.GetBytes(body, "messageType"); !t.Exists() || t.String() == "" {
		return model.ChatMessage{}, errMissingMessageType
	}

	var msg model.ChatMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return model.ChatMessage{}, err
	}
	msg.MessageType = model.ParseMessageType(string(msg.MessageType))
	return msg, nil
}
