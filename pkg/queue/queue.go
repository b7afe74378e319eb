// Package queue provides the bounded, multi-producer single-consumer buffer that
// sits between log call sites and the batch scheduler.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"
)

// Policy decides what happens when an enqueue finds the queue full.
type Policy uint8

const (
	// DropOldest evicts the oldest buffered item to make room.
	DropOldest Policy = iota
	// RejectNew keeps the buffer untouched and discards the incoming item.
	RejectNew
)

// ParsePolicy maps the configuration names drop_oldest and reject_new to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "drop_oldest":
		return DropOldest, nil
	case "reject_new":
		return RejectNew, nil
	default:
		return DropOldest, ewrap.Newf("unknown overflow policy %q", name)
	}
}

func (p Policy) String() string {
	if p == RejectNew {
		return "reject_new"
	}

	return "drop_oldest"
}

// Errors returned by Enqueue.
var (
	ErrFull   = ewrap.New("queue is full")
	ErrClosed = ewrap.New("queue is closed")
)

// Queue is a fixed-capacity ring buffer. Enqueue is O(1) and never blocks beyond a short lock.
type Queue[T any] struct {
	mu      sync.Mutex
	buf     []T
	start   int
	size    int
	head    uint64
	tail    uint64
	policy  Policy
	closed  bool
	dropped atomic.Int64
}

// New returns an empty queue holding at most capacity items.
func New[T any](capacity int, policy Policy) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, ewrap.Newf("queue capacity must be positive, got %d", capacity)
	}

	return &Queue[T]{buf: make([]T, capacity), policy: policy}, nil
}

// Enqueue appends item. Under DropOldest a full queue evicts its oldest item and
// Enqueue succeeds; under RejectNew it returns ErrFull. After Close it returns ErrClosed.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.dropped.Add(1)

		return ErrClosed
	}

	capacity := len(q.buf)

	if q.size == capacity {
		if q.policy == RejectNew {
			q.dropped.Add(1)

			return ErrFull
		}

		var zero T

		q.buf[q.start] = zero
		q.start = (q.start + 1) % capacity
		q.size--
		q.head++
		q.dropped.Add(1)
	}

	q.buf[(q.start+q.size)%capacity] = item
	q.size++
	q.tail++

	return nil
}

// Drain removes up to maxCount of the oldest items and returns them in enqueue order.
// An empty queue yields nil.
func (q *Queue[T]) Drain(maxCount int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(maxCount, q.size)
	if n <= 0 {
		return nil
	}

	out := make([]T, n)

	var zero T

	capacity := len(q.buf)
	for i := range n {
		idx := (q.start + i) % capacity
		out[i] = q.buf[idx]
		q.buf[idx] = zero
	}

	q.start = (q.start + n) % capacity
	q.size -= n
	q.head += uint64(n)

	return out
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return len(q.buf) }

// Policy returns the overflow policy.
func (q *Queue[T]) Policy() Policy { return q.policy }

// Positions returns monotonic sequence numbers: head counts items that left the
// queue by drain or eviction, tail counts accepted items.
func (q *Queue[T]) Positions() (head, tail uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.head, q.tail
}

// Dropped returns how many items were evicted or refused.
func (q *Queue[T]) Dropped() int64 { return q.dropped.Load() }

// Close stops accepting items. Buffered items remain drainable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Closed reports whether Close was called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}
