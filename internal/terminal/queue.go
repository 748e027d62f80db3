// internal/terminal/queue.go
package terminal

import (
	"sync"

	"serial-terminal/internal/model"
)

// EventQueue is the hand-off between the I/O goroutines and the consumer.
// Push never blocks and the queue has no capacity limit; the consumer is
// expected to Drain often enough to keep it small.
type EventQueue struct {
	mu    sync.Mutex
	items []model.DataEvent
	ready chan struct{}
}

// NewEventQueue creates an empty queue
func NewEventQueue() *EventQueue {
	return &EventQueue{
		ready: make(chan struct{}, 1),
	}
}

// Push appends an event to the tail of the queue
func (q *EventQueue) Push(ev model.DataEvent) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued event in FIFO order
func (q *EventQueue) Drain() []model.DataEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued events
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready is signalled after a Push. Several pushes may collapse into one
// signal, so a receiver must Drain everything when woken.
func (q *EventQueue) Ready() <-chan struct{} {
	return q.ready
}
