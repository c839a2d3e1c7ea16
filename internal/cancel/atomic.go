package cancel

import "sync/atomic"

// AtomicCanceler signals stop through an atomic.Bool.
//
// Worker loops check it on every iteration; a Done call is one atomic load,
// against a channel select for ContextCanceler.
type AtomicCanceler struct {
	done atomic.Bool
}

// NewAtomic creates a new AtomicCanceler.
func NewAtomic() *AtomicCanceler {
	return &AtomicCanceler{}
}

// Done returns true if cancellation has been triggered.
func (a *AtomicCanceler) Done() bool {
	return a.done.Load()
}

// Cancel triggers cancellation.
//
// Safe to call multiple times; subsequent calls are no-ops.
func (a *AtomicCanceler) Cancel() {
	a.done.Store(true)
}
