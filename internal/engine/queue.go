package engine

import "sync"

// Trigger is an event-completion notice addressed to one conductor, e.g.
// "the move animation on conductor main finished".
type Trigger struct {
	Conductor string
	Event     string
}

// triggerQueue is a thread-safe FIFO of triggers.
//
// Renderers and audio players finish on their own goroutines; they post
// triggers here and the Driver drains the queue on its goroutine at the
// start of each step, so handler callbacks always run on the conductor's
// owning goroutine.
type triggerQueue struct {
	mu       sync.Mutex
	triggers []Trigger
	closed   bool
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{triggers: make([]Trigger, 0, 16)}
}

// Enqueue adds a trigger to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *triggerQueue) Enqueue(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.triggers = append(q.triggers, t)
	return true
}

// Drain removes and returns every queued trigger in FIFO order.
func (q *triggerQueue) Drain() []Trigger {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.triggers) == 0 {
		return nil
	}
	out := make([]Trigger, len(q.triggers))
	copy(out, q.triggers)
	q.triggers = q.triggers[:0]
	return out
}

// Len returns the current queue length.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.triggers)
}

// Close stops accepting triggers. Already queued triggers can still be
// drained.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Closed reports whether Close has been called.
func (q *triggerQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
