package tick

import "time"

// StdTicker adapts time.Ticker to Ticker. Each Tick is a non-blocking
// receive on the ticker channel. A group sampling per worker gives every
// loop its own StdTicker and stops it when the loop exits.
type StdTicker struct {
	ticker   *time.Ticker
	interval time.Duration
}

// NewTicker creates a StdTicker with the specified interval.
func NewTicker(interval time.Duration) *StdTicker {
	return &StdTicker{
		ticker:   time.NewTicker(interval),
		interval: interval,
	}
}

// Tick returns true if a tick is pending on the channel.
func (t *StdTicker) Tick() bool {
	select {
	case <-t.ticker.C:
		return true
	default:
		return false
	}
}

// Reset starts a new interval from now.
func (t *StdTicker) Reset() {
	t.ticker.Reset(t.interval)
}

// Stop stops the underlying time.Ticker.
func (t *StdTicker) Stop() {
	t.ticker.Stop()
}

// Interval returns the ticker's interval.
func (t *StdTicker) Interval() time.Duration {
	return t.interval
}
