// Package cancel provides stop signals for worker loops that drain steal
// queues.
//
// A worker polls Done between Pop and Steal attempts, often millions of
// times per second while idle, so the check has to be cheap:
//   - AtomicCanceler: a single atomic load per Done
//   - ContextCanceler: a non-blocking select on ctx.Done()
//
// A worksteal.Group picks one per run: by default an AtomicCanceler that
// Watch trips when the run context ends, or a ContextCanceler derived from
// the run context when the group is configured with StopContext.
package cancel

import "context"

// Canceler provides cancellation signaling to workers.
//
// Implementations must be safe for concurrent use:
//   - Multiple goroutines may call Done() concurrently
//   - Cancel() may be called concurrently with Done()
type Canceler interface {
	// Done returns true if cancellation has been triggered.
	Done() bool

	// Cancel triggers cancellation. Safe to call multiple times.
	Cancel()
}

// Watch cancels c once ctx is done.
//
// The returned release function detaches the watcher without cancelling c.
// Call it when the loop exits on its own; calling it more than once is fine.
func Watch(ctx context.Context, c Canceler) (release func()) {
	stop := context.AfterFunc(ctx, c.Cancel)
	return func() { stop() }
}
