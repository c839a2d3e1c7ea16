package tick

import (
	"sync/atomic"
	"time"
	_ "unsafe" // Required for go:linkname
)

// nanotime returns the current monotonic time in nanoseconds without
// building a time.Time.
//
//go:linkname nanotime runtime.nanotime
func nanotime() int64

// AtomicTicker fires at most once per interval across all goroutines that
// poll it. Worker loops share one AtomicTicker so that a single worker
// performs the periodic work for the whole group.
type AtomicTicker struct {
	interval int64 // nanoseconds
	lastTick atomic.Int64
}

// NewAtomicTicker creates an AtomicTicker with the specified interval.
func NewAtomicTicker(interval time.Duration) *AtomicTicker {
	t := &AtomicTicker{
		interval: int64(interval),
	}
	t.lastTick.Store(nanotime())
	return t
}

// Tick returns true if the interval has elapsed since the last tick.
// When several goroutines observe the elapsed interval, only the one whose
// CAS lands first gets true.
func (a *AtomicTicker) Tick() bool {
	now := nanotime()
	last := a.lastTick.Load()

	if now-last < a.interval {
		return false
	}
	return a.lastTick.CompareAndSwap(last, now)
}

// Reset starts a new interval from now.
func (a *AtomicTicker) Reset() {
	a.lastTick.Store(nanotime())
}

// Stop is a no-op for AtomicTicker (no resources to release).
func (a *AtomicTicker) Stop() {}

// Interval returns the ticker's interval.
func (a *AtomicTicker) Interval() time.Duration {
	return time.Duration(a.interval)
}
