package cancel

import "context"

// ContextCanceler wraps context.Context for cancellation signaling.
//
// Each Done() is a non-blocking select on ctx.Done(). A group configured
// with StopContext derives one from the run context, so its loops see the
// caller's cancellation without a watcher goroutine.
type ContextCanceler struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewContext creates a ContextCanceler derived from parent.
func NewContext(parent context.Context) *ContextCanceler {
	ctx, cancel := context.WithCancel(parent)
	return &ContextCanceler{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Done returns true if the context has been cancelled.
func (c *ContextCanceler) Done() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Cancel triggers cancellation of the context.
func (c *ContextCanceler) Cancel() {
	c.cancel()
}

// Context returns the underlying context.Context, for handing to code
// that blocks on ctx.Done() instead of polling.
func (c *ContextCanceler) Context() context.Context {
	return c.ctx
}
