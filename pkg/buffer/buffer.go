// Package buffer provides a generic, thread-safe bounded queue with
// configurable overflow policies. It is the backpressure primitive for
// subscription delivery: emissions are pushed by a producer and drained by
// a single consumer, and when the consumer falls behind the queue either
// drops the newest item, drops the oldest, or blocks the producer.
package buffer

import (
	"sync"

	"github.com/songlinshu/vector/errors"
)

// Policy defines how the queue behaves when it reaches capacity.
type Policy int

const (
	// DropNewest drops incoming items when the queue is full. This keeps
	// already-queued items intact and favors bounded producer latency.
	DropNewest Policy = iota

	// DropOldest removes the oldest queued item to make room, favoring
	// freshness of delivered data.
	DropOldest

	// Block makes Push wait until the consumer frees space.
	Block
)

// String returns a human-readable representation of the policy.
func (p Policy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "drop-newest":
		return DropNewest, nil
	case "drop-oldest":
		return DropOldest, nil
	case "block":
		return Block, nil
	default:
		return DropNewest, errors.WrapInvalid(errors.ErrInvalidConfig,
			"buffer", "ParsePolicy", "unknown overflow policy "+s)
	}
}

// DropFunc is called with each item discarded by an overflow policy.
type DropFunc[T any] func(item T)

// Queue is a bounded FIFO queue safe for one producer and one consumer
// running in different goroutines.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	policy   Policy
	onDrop   DropFunc[T]
	dropped  uint64
	pushed   uint64
	closed   bool

	notFull *sync.Cond    // Block policy writers wait here
	notify  chan struct{} // wakes the consumer; buffered, never closed
}

// New creates a queue with the given capacity and overflow policy.
// onDrop may be nil.
func New[T any](capacity int, policy Policy, onDrop DropFunc[T]) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"buffer", "New", "capacity must be positive")
	}
	q := &Queue[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		policy:   policy,
		onDrop:   onDrop,
		notify:   make(chan struct{}, 1),
	}
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Push adds an item according to the overflow policy. It returns
// ErrConnectionClosed-wrapped failure after Close.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return errors.WrapInvalid(errors.ErrShuttingDown, "Queue", "Push", "queue closed")
	}

	if q.size == q.capacity {
		switch q.policy {
		case DropNewest:
			q.dropped++
			onDrop := q.onDrop
			q.mu.Unlock()
			if onDrop != nil {
				onDrop(item)
			}
			return nil

		case DropOldest:
			victim := q.items[q.tail]
			var zero T
			q.items[q.tail] = zero
			q.tail = (q.tail + 1) % q.capacity
			q.size--
			q.dropped++
			if q.onDrop != nil {
				defer q.onDrop(victim)
			}

		case Block:
			for q.size == q.capacity && !q.closed {
				q.notFull.Wait()
			}
			if q.closed {
				q.mu.Unlock()
				return errors.WrapInvalid(errors.ErrShuttingDown, "Queue", "Push",
					"queue closed during blocking wait")
			}
		}
	}

	q.items[q.head] = item
	q.head = (q.head + 1) % q.capacity
	q.size++
	q.pushed++
	q.mu.Unlock()

	q.wake()
	return nil
}

// Pop retrieves and removes the oldest item. It returns false when the
// queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.size == 0 {
		return zero, false
	}

	item := q.items[q.tail]
	q.items[q.tail] = zero // release for GC
	q.tail = (q.tail + 1) % q.capacity
	q.size--

	q.notFull.Signal()
	return item, true
}

// Ready returns a channel that receives a signal whenever items may be
// available; the consumer must drain with Pop until it returns false.
// A wake-up is also delivered on Close so the consumer can observe it.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.notify
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return q.capacity }

// Dropped returns the total number of items discarded by overflow.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Pushed returns the total number of items accepted.
func (q *Queue[T]) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close marks the queue closed, releases blocked producers, and wakes the
// consumer. Items already queued remain readable via Pop.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.mu.Unlock()

	q.wake()
}

// wake delivers a non-blocking consumer notification.
func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
