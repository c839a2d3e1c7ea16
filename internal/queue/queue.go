// Package queue provides a bounded lock-free task queue for work stealing.
//
// StealQueue is a fixed-capacity ring with two monotonically increasing
// cursors. Any goroutine may call Push, Pop or Steal concurrently:
//   - Push claims the next write index with a CAS on the write cursor
//   - Pop claims the next read index with a CAS on the read cursor
//   - Steal is Pop performed by another worker against a victim queue
//
// # Failure Is Not an Error
//
// Push on a full queue and Pop/Steal on an empty queue return false.
// The queue never blocks and never waits; callers decide how to back off
// (spin, runtime.Gosched, sleep) before trying again.
//
// # Teardown
//
// The queue has no internal quiescence barrier. The owner must ensure no
// goroutine calls any method once it starts discarding the queue.
package queue

// Queue is a non-blocking bounded FIFO queue.
//
// Implementations are non-blocking: Push returns false if full,
// Pop returns false if empty.
type Queue[T any] interface {
	// Push adds an item to the queue.
	// Returns false if the queue is full.
	Push(T) bool

	// Pop removes and returns an item from the queue.
	// Returns false if the queue is empty.
	Pop() (T, bool)
}

// Stealer is a Queue that peers can drain from.
type Stealer[T any] interface {
	Queue[T]

	// Steal removes the oldest item of victim on behalf of the receiver.
	// Returns false if victim is empty.
	Steal(victim *StealQueue[T]) (T, bool)

	// Len returns an approximate occupancy.
	Len() int

	// Cap returns the fixed capacity.
	Cap() int
}

var (
	_ Queue[int]   = (*StealQueue[int])(nil)
	_ Stealer[int] = (*StealQueue[int])(nil)
)
