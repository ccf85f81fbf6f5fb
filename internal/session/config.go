package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/chatlink/internal/connection"
	"github.com/rickgao/chatlink/internal/heartbeat"
	"github.com/rickgao/chatlink/internal/reconnect"
)

// DefaultHandshakeTimeout bounds the STOMP handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// Config holds session settings.
type Config struct {
	URL    string
	Host   string
	Header http.Header

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// STOMP heart-beat intervals offered in CONNECT.
	HeartbeatOutgoing time.Duration
	HeartbeatIncoming time.Duration

	Heartbeat heartbeat.Config
	Reconnect reconnect.Config

	// AnnouncePresence sends JOIN after each connect and room switch.
	AnnouncePresence bool
}

// DefaultConfig returns the default session settings for url.
func DefaultConfig(url string) Config {
	cc := connection.DefaultClientConfig()
	return Config{
		URL:               url,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		WriteTimeout:      cc.WriteTimeout,
		HeartbeatOutgoing: cc.HeartbeatOutgoing,
		HeartbeatIncoming: cc.HeartbeatIncoming,
		Heartbeat:         heartbeat.DefaultConfig(),
		Reconnect:         reconnect.DefaultConfig(),
		AnnouncePresence:  true,
	}
}

func (c Config) clientConfig() connection.ClientConfig {
	cc := connection.DefaultClientConfig()
	cc.URL = c.URL
	cc.Host = c.Host
	cc.Header = c.Header
	cc.HandshakeTimeout = c.HandshakeTimeout
	if c.WriteTimeout > 0 {
		cc.WriteTimeout = c.WriteTimeout
	}
	cc.HeartbeatOutgoing = c.HeartbeatOutgoing
	cc.HeartbeatIncoming = c.HeartbeatIncoming
	return cc
}

// ClientFactory builds a transport for one connection attempt.
type ClientFactory func(cfg connection.ClientConfig, logger *slog.Logger) connection.Client

// Option configures a Session.
type Option func(*Session)

// WithClientFactory replaces the transport constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Session) {
		if f != nil {
			s.newClient = f
		}
	}
}

// WithClock replaces the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}
