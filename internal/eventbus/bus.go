// Package eventbus is the typed publish/subscribe dispatcher between the
// chat session and its consumers.
package eventbus

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Handler receives events.
type Handler func(Event)

type listener struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously to listeners registered per type.
// Each registration receives an event once. A panicking listener is
// logged and skipped; the remaining listeners still run.
type Bus struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[EventType][]listener
	nextID    uint64
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:    logger.With("component", "eventbus"),
		listeners: make(map[EventType][]listener),
	}
}

// On registers h for events of type t and returns a function that removes
// the registration. Calling the returned function more than once is safe.
func (b *Bus) On(t EventType, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[t] = append(b.listeners[t], listener{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, id) })
	}
}

func (b *Bus) remove(t EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ls := b.listeners[t]
	for i, l := range ls {
		if l.id == id {
			// Copy so snapshots held by in-flight publishes stay intact.
			next := make([]listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			if len(next) == 0 {
				delete(b.listeners, t)
			} else {
				b.listeners[t] = next
			}
			return
		}
	}
}

// Emit builds an event of type t and publishes it.
func (b *Bus) Emit(t EventType, data any) Event {
	e := NewEvent(t, data)
	b.Publish(e)
	return e
}

// Publish delivers e to the listeners registered for its type. Listeners
// run on the caller's goroutine without the bus lock held.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	ls := b.listeners[e.Type]
	b.mu.RUnlock()

	for _, l := range ls {
		b.call(l, e)
	}
}

func (b *Bus) call(l listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked",
				"event", e.Type,
				"event_id", e.ID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	l.handler(e)
}

// ListenerCount returns the number of listeners for t.
func (b *Bus) ListenerCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[t])
}

// Clear removes every listener.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.listeners = make(map[EventType][]listener)
	b.mu.Unlock()
}
