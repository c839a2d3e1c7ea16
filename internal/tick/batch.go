package tick

import "time"

// BatchTicker reads the clock only every N calls to Tick().
//
// A group sampling in batches gives every worker loop its own BatchTicker,
// so a busy worker reads the clock once per every iterations instead of on
// each Pop. It is not safe for concurrent use.
type BatchTicker struct {
	interval time.Duration
	every    int
	count    int
	lastTick time.Time
}

// NewBatch creates a BatchTicker that fires after interval, checking the
// clock once per every calls. every below 1 is treated as 1.
func NewBatch(interval time.Duration, every int) *BatchTicker {
	if every < 1 {
		every = 1
	}
	return &BatchTicker{
		interval: interval,
		every:    every,
		lastTick: time.Now(),
	}
}

// Tick returns true if the interval has elapsed. Between clock reads it
// returns false without looking at the time.
func (b *BatchTicker) Tick() bool {
	b.count++
	if b.count%b.every != 0 {
		return false
	}

	now := time.Now()
	if now.Sub(b.lastTick) >= b.interval {
		b.lastTick = now
		return true
	}
	return false
}

// Reset clears the call count and starts a new interval.
func (b *BatchTicker) Reset() {
	b.count = 0
	b.lastTick = time.Now()
}

// Stop is a no-op for BatchTicker.
func (b *BatchTicker) Stop() {}

// Every returns the batch size.
func (b *BatchTicker) Every() int {
	return b.every
}

// Interval returns the ticker's interval.
func (b *BatchTicker) Interval() time.Duration {
	return b.interval
}
