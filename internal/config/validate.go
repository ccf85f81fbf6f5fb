package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server.url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Server.HistoryURL != "" {
		h, err := url.Parse(c.Server.HistoryURL)
		if err != nil {
			return fmt.Errorf("server.history_url is invalid: %w", err)
		}
		if h.Scheme != "http" && h.Scheme != "https" {
			return fmt.Errorf("server.history_url scheme must be http or https, got %q", h.Scheme)
		}
	}
	if c.Server.HandshakeTimeout < 0 {
		return errors.New("server.handshake_timeout must be >= 0")
	}
	if c.Server.HeartbeatOutgoing < 0 || c.Server.HeartbeatIncoming < 0 {
		return errors.New("server heart-beat intervals must be >= 0")
	}

	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}
	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%s) cannot be less than base_delay (%s)", c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}

	if c.Heartbeat.Timeout <= 0 {
		return errors.New("heartbeat.timeout must be > 0")
	}
	if c.Heartbeat.PollInterval <= 0 {
		return errors.New("heartbeat.poll_interval must be > 0")
	}

	if c.Session.Room == "" {
		return errors.New("session.room is required")
	}
	if c.Session.Username == "" {
		return errors.New("session.username is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Health.Enabled && c.Health.Addr == "" {
		return errors.New("health.addr is required when health.enabled is set")
	}

	return nil
}
