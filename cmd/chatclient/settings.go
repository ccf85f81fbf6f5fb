package main

import (
	"net/http"

	"github.com/rickgao/chatlink/internal/config"
	"github.com/rickgao/chatlink/internal/heartbeat"
	"github.com/rickgao/chatlink/internal/reconnect"
	"github.com/rickgao/chatlink/internal/session"
	"github.com/rickgao/chatlink/internal/version"
)

// sessionConfig maps the file/env configuration onto session settings.
func sessionConfig(cfg *config.Config) session.Config {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	return session.Config{
		URL:               cfg.Server.URL,
		Host:              cfg.Server.Host,
		Header:            header,
		HandshakeTimeout:  cfg.Server.HandshakeTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		HeartbeatOutgoing: cfg.Server.HeartbeatOutgoing,
		HeartbeatIncoming: cfg.Server.HeartbeatIncoming,
		Heartbeat: heartbeat.Config{
			Timeout:      cfg.Heartbeat.Timeout,
			PollInterval: cfg.Heartbeat.PollInterval,
		},
		Reconnect: reconnect.Config{
			Enabled:                cfg.ReconnectEnabled(),
			MaxAttempts:            cfg.Reconnect.MaxAttempts,
			BaseDelay:              cfg.Reconnect.BaseDelay,
			MaxDelay:               cfg.Reconnect.MaxDelay,
			CancelPendingOnDisable: cfg.CancelPendingOnDisable(),
		},
		AnnouncePresence: cfg.AnnouncePresence(),
	}
}

// flagOverrides holds command-line values that take precedence over config.
type flagOverrides struct {
	url         string
	historyURL  string
	room        string
	username    string
	logLevel    string
	noReconnect bool
	health      string
}

func (f flagOverrides) apply(cfg *config.Config) {
	if f.url != "" {
		cfg.Server.URL = f.url
	}
	if f.historyURL != "" {
		cfg.Server.HistoryURL = f.historyURL
	}
	if f.room != "" {
		cfg.Session.Room = f.room
	}
	if f.username != "" {
		cfg.Session.Username = f.username
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.noReconnect {
		disabled := false
		cfg.Reconnect.Enabled = &disabled
	}
	if f.health != "" {
		cfg.Health.Enabled = true
		cfg.Health.Addr = f.health
	}
}
