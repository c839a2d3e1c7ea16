// Package tick provides cheap periodic triggers for worker hot loops.
//
// Workers that spin on Pop and Steal need to do something every so often
// (sample queue occupancy, log progress) without paying for a timer
// channel on every iteration:
//   - StdTicker: time.Ticker wrapper, the baseline
//   - BatchTicker: reads the clock only every N calls; one goroutine only
//   - AtomicTicker: runtime.nanotime plus a CAS; shareable by all workers,
//     exactly one caller wins each interval
package tick

import "time"

// Ticker signals when a time interval has elapsed.
type Ticker interface {
	// Tick returns true if the interval has elapsed since the last tick.
	// This is a non-blocking check.
	Tick() bool

	// Reset starts a new interval from now.
	Reset()

	// Stop releases any resources held by the ticker.
	// After Stop, the ticker should not be used.
	Stop()
}

// DefaultInterval is the occupancy sampling period used when none is set.
const DefaultInterval = 100 * time.Millisecond

// New returns the ticker all worker loops of a group share: an
// AtomicTicker, or nil when interval is not positive. A nil Ticker disables
// sampling.
func New(interval time.Duration) Ticker {
	if interval <= 0 {
		return nil
	}
	return NewAtomicTicker(interval)
}
