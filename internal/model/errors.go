package model

import (
	"errors"
	"fmt"
	"time"
)

// ConnectionError reports a handshake or transport failure.
type ConnectionError struct {
	Op  string // "dial", "handshake", "read", ...
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports a handshake that exceeded its bound.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s, check network or server status", e.Op, e.Timeout)
}

// ParseError reports a malformed inbound frame. It never affects connection state.
type ParseError struct {
	Destination string
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse message from %s: %v", e.Destination, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SendError reports a transport failure while sending. The message is requeued.
type SendError struct {
	Destination string
	Err         error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Destination, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// SubscriptionError reports a failed destination subscription.
type SubscriptionError struct {
	Destination string
	Err         error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Destination, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
