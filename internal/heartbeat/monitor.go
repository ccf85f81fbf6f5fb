package heartbeat

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultTimeout is the staleness threshold.
	DefaultTimeout = 30 * time.Second

	// DefaultPollInterval is how often staleness is checked.
	DefaultPollInterval = 5 * time.Second
)

// Config holds monitor settings.
type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// DefaultConfig returns the default monitor settings.
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// TimeoutFunc is invoked from the monitor goroutine when the connection
// has been silent for longer than the timeout.
type TimeoutFunc func(lastSeenAt time.Time, timeout time.Duration)

// Health is a point-in-time liveness snapshot.
type Health struct {
	Running    bool          `json:"running"`
	LastSeenAt time.Time     `json:"lastSeenAt"`
	SinceLast  time.Duration `json:"sinceLast"`
	Timeout    time.Duration `json:"timeout"`
	Stale      bool          `json:"stale"`
}

// Monitor detects silent connections.
type Monitor struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastSeen time.Time
	running  bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a stopped monitor.
func NewMonitor(cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Monitor{
		cfg:    cfg,
		logger: logger.With("component", "heartbeat"),
		now:    time.Now,
	}
}

// Touch records inbound traffic.
func (m *Monitor) Touch() {
	m.TouchAt(m.now())
}

// TouchAt records inbound traffic observed at t. Older timestamps are ignored.
func (m *Monitor) TouchAt(t time.Time) {
	m.mu.Lock()
	if t.After(m.lastSeen) {
		m.lastSeen = t
	}
	m.mu.Unlock()
}

// LastSeen returns the timestamp of the most recent inbound traffic.
func (m *Monitor) LastSeen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

// Running reports whether the poll loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start resets the last-seen timestamp to now and begins polling. A running
// monitor is stopped first, so at most one poll loop exists.
func (m *Monitor) Start(onTimeout TimeoutFunc) {
	m.Stop()

	m.mu.Lock()
	m.lastSeen = m.now()
	m.running = true
	stop := make(chan struct{})
	m.stop = stop
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(stop, onTimeout)
}

// Stop cancels the poll loop. It is safe to call on a stopped monitor and
// from within the timeout callback.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.stop = nil
	m.mu.Unlock()
}

// Wait blocks until the poll loop has exited.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Health returns a liveness snapshot.
func (m *Monitor) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := Health{
		Running:    m.running,
		LastSeenAt: m.lastSeen,
		Timeout:    m.cfg.Timeout,
	}
	if !m.lastSeen.IsZero() {
		h.SinceLast = m.now().Sub(m.lastSeen)
		h.Stale = h.SinceLast > m.cfg.Timeout
	}
	return h
}

func (m *Monitor) loop(stop chan struct{}, onTimeout TimeoutFunc) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.stop != stop {
				m.mu.Unlock()
				return
			}
			lastSeen := m.lastSeen
			elapsed := m.now().Sub(lastSeen)
			if elapsed <= m.cfg.Timeout {
				m.mu.Unlock()
				continue
			}
			m.running = false
			close(m.stop)
			m.stop = nil
			m.mu.Unlock()

			m.logger.Warn("heartbeat timeout",
				"last_seen", lastSeen,
				"elapsed", elapsed,
				"timeout", m.cfg.Timeout,
			)
			if onTimeout != nil {
				onTimeout(lastSeen, m.cfg.Timeout)
			}
			return
		}
	}
}
