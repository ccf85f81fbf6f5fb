// Package queue holds outbound chat messages that could not be sent yet.
//
// The queue is FIFO and unbounded. Drain takes an atomic snapshot and
// empties the live queue, so messages enqueued while a flush is running
// line up behind the batch instead of interleaving with it.
package queue

import (
	"sync"
	"time"

	"github.com/rickgao/chatlink/internal/model"
)

// QueuedMessage is a message waiting for a healthy connection.
type QueuedMessage struct {
	Content     string            `json:"content"`
	Sender      string            `json:"sender"`
	MessageType model.MessageType `json:"messageType"`
	EnqueuedAt  time.Time         `json:"enqueuedAt"`
}

// Queue is a concurrency-safe FIFO of outbound messages.
type Queue struct {
	mu    sync.Mutex
	items []QueuedMessage
	now   func() time.Time
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{now: time.Now}
}

// Enqueue appends a message stamped with the current time and returns the
// new depth.
func (q *Queue) Enqueue(content, sender string, messageType model.MessageType) int {
	return q.push(QueuedMessage{
		Content:     content,
		Sender:      sender,
		MessageType: messageType,
	})
}

// Requeue appends a message that failed to send. Its timestamp is reset to
// the time of requeueing.
func (q *Queue) Requeue(m QueuedMessage) int {
	return q.push(m)
}

func (q *Queue) push(m QueuedMessage) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	m.EnqueuedAt = q.now()
	q.items = append(q.items, m)
	return len(q.items)
}

// Drain returns every queued message in order and leaves the queue empty.
func (q *Queue) Drain() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = nil
	return batch
}

// Snapshot returns a copy of the queued messages without removing them.
func (q *Queue) Snapshot() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedMessage, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards all queued messages and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
