package config

import "time"

// Config is the top-level chat client configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
	Health    HealthConfig    `yaml:"health"`
}

// ServerConfig describes the chat server endpoints.
type ServerConfig struct {
	// URL is the STOMP WebSocket endpoint, e.g. ws://localhost:8080/ws/websocket.
	URL              string        `yaml:"url" env:"CHATLINK_SERVER_URL"`
	Host             string        `yaml:"host" env:"CHATLINK_SERVER_HOST"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"CHATLINK_SERVER_HANDSHAKE_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"CHATLINK_SERVER_WRITE_TIMEOUT"`

	HeartbeatOutgoing time.Duration `yaml:"heartbeat_outgoing" env:"CHATLINK_SERVER_HEARTBEAT_OUTGOING"`
	HeartbeatIncoming time.Duration `yaml:"heartbeat_incoming" env:"CHATLINK_SERVER_HEARTBEAT_INCOMING"`

	// HistoryURL is the REST base URL for room history. Empty disables history.
	HistoryURL     string        `yaml:"history_url" env:"CHATLINK_SERVER_HISTORY_URL"`
	HistoryTimeout time.Duration `yaml:"history_timeout" env:"CHATLINK_SERVER_HISTORY_TIMEOUT"`
}

// ReconnectConfig controls automatic reconnection.
type ReconnectConfig struct {
	Enabled     *bool         `yaml:"enabled" env:"CHATLINK_RECONNECT_ENABLED"`
	MaxAttempts int           `yaml:"max_attempts" env:"CHATLINK_RECONNECT_MAX_ATTEMPTS"`
	BaseDelay   time.Duration `yaml:"base_delay" env:"CHATLINK_RECONNECT_BASE_DELAY"`
	MaxDelay    time.Duration `yaml:"max_delay" env:"CHATLINK_RECONNECT_MAX_DELAY"`

	CancelPendingOnDisable *bool `yaml:"cancel_pending_on_disable" env:"CHATLINK_RECONNECT_CANCEL_PENDING_ON_DISABLE"`
}

// HeartbeatConfig controls the inbound liveness monitor.
type HeartbeatConfig struct {
	Timeout      time.Duration `yaml:"timeout" env:"CHATLINK_HEARTBEAT_TIMEOUT"`
	PollInterval time.Duration `yaml:"poll_interval" env:"CHATLINK_HEARTBEAT_POLL_INTERVAL"`
}

// SessionConfig holds the identity used when joining.
type SessionConfig struct {
	Room             string `yaml:"room" env:"CHATLINK_SESSION_ROOM"`
	Username         string `yaml:"username" env:"CHATLINK_SESSION_USERNAME"`
	AnnouncePresence *bool  `yaml:"announce_presence" env:"CHATLINK_SESSION_ANNOUNCE_PRESENCE"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CHATLINK_LOG_LEVEL"`
	Format string `yaml:"format" env:"CHATLINK_LOG_FORMAT"`
}

// HealthConfig controls the debug/health HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" env:"CHATLINK_HEALTH_ENABLED"`
	Addr    string `yaml:"addr" env:"CHATLINK_HEALTH_ADDR"`
}

// ReconnectEnabled reports the effective reconnect.enabled value.
func (c *Config) ReconnectEnabled() bool {
	return boolValue(c.Reconnect.Enabled, DefaultReconnectEnabled)
}

// CancelPendingOnDisable reports the effective reconnect.cancel_pending_on_disable value.
func (c *Config) CancelPendingOnDisable() bool {
	return boolValue(c.Reconnect.CancelPendingOnDisable, DefaultCancelPendingOnDisable)
}

// AnnouncePresence reports the effective session.announce_presence value.
func (c *Config) AnnouncePresence() bool {
	return boolValue(c.Session.AnnouncePresence, DefaultAnnouncePresence)
}

func boolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
