package reconnect

import (
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// Config holds reconnection settings.
type Config struct {
	Enabled     bool
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// CancelPendingOnDisable controls whether SetEnabled(false) stops a
	// retry timer that is already scheduled.
	CancelPendingOnDisable bool
}

// DefaultConfig returns the default reconnection settings.
func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		MaxAttempts:            DefaultMaxAttempts,
		BaseDelay:              DefaultBaseDelay,
		MaxDelay:               DefaultMaxDelay,
		CancelPendingOnDisable: true,
	}
}

// Status is a read-only view of the controller.
type Status struct {
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"maxAttempts"`
	Enabled     bool          `json:"enabled"`
	Pending     bool          `json:"pending"`
	BaseDelay   time.Duration `json:"baseDelay"`
	MaxDelay    time.Duration `json:"maxDelay"`
}

// Controller tracks reconnect attempts and the pending retry timer.
type Controller struct {
	logger *slog.Logger

	mu      sync.Mutex
	cfg     Config
	attempt int
	timer   *time.Timer
	token   uint64
	pending bool
}

// NewController creates a controller with attempt=0.
func NewController(cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	return &Controller{
		cfg:    cfg,
		logger: logger.With("component", "reconnect"),
	}
}

// Backoff returns min(base*2^(attempt-1), limit). Attempts below 1 are
// treated as 1.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if base >= limit {
		return limit
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}

// Delay returns the backoff delay for attempt k with the current settings.
func (c *Controller) Delay(attempt int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Backoff(attempt, c.cfg.BaseDelay, c.cfg.MaxDelay)
}

// Next advances the attempt counter and returns the new attempt number and
// its delay. ok is false, and the counter is unchanged, once MaxAttempts
// has been reached.
func (c *Controller) Next() (attempt int, delay time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt >= c.cfg.MaxAttempts {
		return c.attempt, 0, false
	}
	c.attempt++
	return c.attempt, Backoff(c.attempt, c.cfg.BaseDelay, c.cfg.MaxDelay), true
}

// Exhausted reports whether no attempts remain.
func (c *Controller) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt >= c.cfg.MaxAttempts
}

// Attempt returns the current attempt counter.
func (c *Controller) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Reset sets the attempt counter back to zero.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.attempt = 0
	c.mu.Unlock()
}

// Schedule arms a retry timer that calls fn with its token after delay.
// Any previously pending timer is cancelled. The callback should Claim its
// token before acting.
func (c *Controller) Schedule(delay time.Duration, fn func(token uint64)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.token++
	token := c.token
	c.pending = true
	c.timer = time.AfterFunc(delay, func() { fn(token) })

	c.logger.Debug("retry scheduled", "attempt", c.attempt, "delay", delay, "token", token)
	return token
}

// Claim marks the timer identified by token as fired. It returns false if
// the timer was cancelled or replaced.
func (c *Controller) Claim(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending || token != c.token {
		return false
	}
	c.pending = false
	c.timer = nil
	return true
}

// Cancel stops the pending timer. It reports whether one was pending.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() bool {
	if !c.pending {
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = false
	c.token++
	return true
}

// Pending reports whether a retry timer is armed.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Enabled reports whether auto-reconnect is on.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Enabled
}

// SetEnabled toggles auto-reconnect. When disabling with
// CancelPendingOnDisable set, a pending timer is cancelled and true is
// returned.
func (c *Controller) SetEnabled(enabled bool) (cancelled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.Enabled = enabled
	if !enabled && c.cfg.CancelPendingOnDisable {
		return c.stopLocked()
	}
	return false
}

// SetMaxAttempts changes the attempt limit.
func (c *Controller) SetMaxAttempts(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	c.cfg.MaxAttempts = n
	c.mu.Unlock()
}

// SetBaseDelay changes the base backoff delay. Non-positive values are ignored.
func (c *Controller) SetBaseDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.cfg.BaseDelay = d
	c.mu.Unlock()
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Attempt:     c.attempt,
		MaxAttempts: c.cfg.MaxAttempts,
		Enabled:     c.cfg.Enabled,
		Pending:     c.pending,
		BaseDelay:   c.cfg.BaseDelay,
		MaxDelay:    c.cfg.MaxDelay,
	}
}
