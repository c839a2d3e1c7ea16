package queue

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// ErrInvalidCapacity is returned by New when capacity is not positive.
var ErrInvalidCapacity = errors.New("queue: capacity must be greater than zero")

// slot is one cell of the ring.
//
// stamp tracks which role may touch the cell next. For absolute index i
// mapping to this cell, with capacity c:
//
//	stamp == i      free, a writer that claims i may store
//	stamp == i+1    published, a reader that claims i may load
//	stamp == i+c    released, free for index i+c
//
// The cursor CAS decides who owns index i; the stamp only tells a
// claimant whether the previous owner of the cell is done with it.
type slot[T any] struct {
	stamp atomic.Uint64
	val   T
}

// StealQueue is a bounded multi-producer multi-consumer queue with a
// Steal operation for work-stealing workers.
//
// Occupancy is write - read and always stays within [0, capacity].
// Values are delivered exactly once. With a single goroutine the queue
// is strictly FIFO.
type StealQueue[T any] struct {
	_ cpu.CacheLinePad

	// write is the next absolute index to be claimed by a producer.
	write atomic.Uint64

	_ cpu.CacheLinePad

	// read is the next absolute index to be claimed by a consumer or thief.
	read atomic.Uint64

	_ cpu.CacheLinePad

	// Read-only after New.
	slots    []slot[T]
	capacity uint64
	tracker  Tracker
}

// New creates a StealQueue holding at most capacity items.
// Capacity is used as given; it is not rounded to a power of two.
func New[T any](capacity int, opts ...Option) (*StealQueue[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	o := options{tracker: nopTracker{}}
	for _, opt := range opts {
		opt(&o)
	}

	q := &StealQueue[T]{
		slots:    make([]slot[T], capacity),
		capacity: uint64(capacity),
		tracker:  o.tracker,
	}
	for i := range q.slots {
		q.slots[i].stamp.Store(uint64(i))
	}
	return q, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew[T any](capacity int, opts ...Option) *StealQueue[T] {
	q, err := New[T](capacity, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

// Push adds v to the tail of the queue.
// Returns false if the queue is full. Under contention it may also return
// false while the consumer of the previous lap is still clearing the tail
// slot; retrying succeeds once that consumer is done.
func (q *StealQueue[T]) Push(v T) bool {
	ok := q.push(v)
	q.tracker.OnPush(ok)
	return ok
}

func (q *StealQueue[T]) push(v T) bool {
	for {
		// read first: write can only be ahead of a stale read, never behind it.
		r := q.read.Load()
		w := q.write.Load()

		if w-r >= q.capacity {
			if q.read.Load() != r {
				continue // a consumer made room while we looked
			}
			return false
		}

		s := &q.slots[w%q.capacity]
		switch diff := int64(s.stamp.Load() - w); {
		case diff == 0:
			if !q.write.CompareAndSwap(w, w+1) {
				continue
			}
			// Index w is ours. Store, then publish.
			s.val = v
			s.stamp.Store(w + 1)
			return true
		case diff < 0:
			// The reader of the previous lap claimed this cell but has
			// not moved the value out yet.
			return false
		default:
			// Another producer already took w.
		}
	}
}

// Pop removes the oldest item of the queue.
// Returns false if the queue is empty. Under contention it may also return
// false while the producer that claimed the head slot is still storing
// into it; retrying succeeds once that producer is done.
func (q *StealQueue[T]) Pop() (T, bool) {
	v, ok := q.take()
	q.tracker.OnPop(ok)
	return v, ok
}

// Steal removes the oldest item of victim. The receiver is the thief; only
// its tracker observes the attempt. Stealing from oneself is the same as Pop.
// A false result has the same meaning as for Pop on victim.
func (q *StealQueue[T]) Steal(victim *StealQueue[T]) (T, bool) {
	v, ok := victim.take()
	q.tracker.OnSteal(ok)
	return v, ok
}

// take is the read-side claim shared by Pop and Steal.
func (q *StealQueue[T]) take() (T, bool) {
	var zero T
	for {
		r := q.read.Load()
		w := q.write.Load()

		if r == w {
			return zero, false
		}

		s := &q.slots[r%q.capacity]
		switch diff := int64(s.stamp.Load() - (r + 1)); {
		case diff == 0:
			if !q.read.CompareAndSwap(r, r+1) {
				continue
			}
			// Index r is ours. Move out, then release the cell.
			v := s.val
			s.val = zero
			s.stamp.Store(r + q.capacity)
			return v, true
		case diff < 0:
			// A producer claimed r but has not published it yet.
			return zero, false
		default:
			// Another consumer already took r.
		}
	}
}

// Len returns the number of claimed but not yet consumed items.
// This is a snapshot and may be stale by the time it is used.
func (q *StealQueue[T]) Len() int {
	r := q.read.Load()
	w := q.write.Load()
	n := w - r
	if n > q.capacity {
		// read went stale while write moved on
		n = q.capacity
	}
	return int(n)
}

// Cap returns the capacity of the queue.
func (q *StealQueue[T]) Cap() int {
	return int(q.capacity)
}
