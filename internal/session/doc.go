// Package session is the resilient chat connection.
//
// A Session owns one STOMP transport at a time and drives it through the
// states Disconnected, Connecting, Connected, Reconnecting and Broken.
// It subscribes the room topic, the per-user notification queue and the
// heartbeat queue; announces presence; replays messages queued while
// offline; detects silent connections; and retries failed connections
// with bounded exponential backoff.
//
// Every state transition, timer callback and inbound frame runs under a
// single mutex. Events are queued while the mutex is held and delivered
// afterwards, in order, so listeners may call back into the Session.
//
// Basic usage:
//
//	s := session.New(cfg, logger)
//	defer s.Dispose()
//
//	s.On(eventbus.EventMessageReceived, func(e eventbus.Event) { ... })
//	if err := s.Connect(ctx, "42", "alice", true); err != nil { ... }
//	s.Send("hello", "alice")
package session
