package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerURL         = "ws://localhost:8080/ws/websocket"
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultHeartbeatInterval = 20 * time.Second
	DefaultHistoryTimeout    = 10 * time.Second

	DefaultReconnectEnabled       = true
	DefaultMaxAttempts            = 5
	DefaultReconnectBaseDelay     = 2 * time.Second
	DefaultReconnectMaxDelay      = 30 * time.Second
	DefaultCancelPendingOnDisable = true

	DefaultHeartbeatTimeout      = 30 * time.Second
	DefaultHeartbeatPollInterval = 5 * time.Second

	DefaultRoom             = "general"
	DefaultAnnouncePresence = true

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultHealthAddr = "127.0.0.1:8089"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.HeartbeatOutgoing == 0 {
		c.Server.HeartbeatOutgoing = DefaultHeartbeatInterval
	}
	if c.Server.HeartbeatIncoming == 0 {
		c.Server.HeartbeatIncoming = DefaultHeartbeatInterval
	}
	if c.Server.HistoryTimeout == 0 {
		c.Server.HistoryTimeout = DefaultHistoryTimeout
	}

	// Reconnect defaults
	if c.Reconnect.Enabled == nil {
		c.Reconnect.Enabled = boolPtr(DefaultReconnectEnabled)
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Reconnect.CancelPendingOnDisable == nil {
		c.Reconnect.CancelPendingOnDisable = boolPtr(DefaultCancelPendingOnDisable)
	}

	// Heartbeat defaults
	if c.Heartbeat.Timeout == 0 {
		c.Heartbeat.Timeout = DefaultHeartbeatTimeout
	}
	if c.Heartbeat.PollInterval == 0 {
		c.Heartbeat.PollInterval = DefaultHeartbeatPollInterval
	}

	// Session defaults
	if c.Session.Room == "" {
		c.Session.Room = DefaultRoom
	}
	if c.Session.AnnouncePresence == nil {
		c.Session.AnnouncePresence = boolPtr(DefaultAnnouncePresence)
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Health.Addr == "" {
		c.Health.Addr = DefaultHealthAddr
	}
}

func boolPtr(v bool) *bool { return &v }
