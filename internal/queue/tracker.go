package queue

import "sync/atomic"

// Tracker observes the outcome of every queue operation.
//
// Implementations must be safe for concurrent use; they are called on the
// hot path after each Push, Pop and Steal returns.
type Tracker interface {
	OnPush(ok bool)
	OnPop(ok bool)
	OnSteal(ok bool)
}

// Option configures a StealQueue.
type Option func(*options)

type options struct {
	tracker Tracker
}

// WithTracker attaches t to the queue. A nil t is ignored.
func WithTracker(t Tracker) Option {
	return func(o *options) {
		if t != nil {
			o.tracker = t
		}
	}
}

type nopTracker struct{}

func (nopTracker) OnPush(bool)  {}
func (nopTracker) OnPop(bool)   {}
func (nopTracker) OnSteal(bool) {}

// Counters is a Tracker that counts outcomes with atomic counters.
//
// One Counters may be shared by several queues to aggregate them.
type Counters struct {
	pushed   atomic.Uint64
	full     atomic.Uint64
	popped   atomic.Uint64
	popEmpty atomic.Uint64
	stolen   atomic.Uint64
	stealMis atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Pushed     uint64
	Full       uint64
	Popped     uint64
	PopEmpty   uint64
	Stolen     uint64
	StealEmpty uint64
}

// NewCounters creates a zeroed Counters.
func NewCounters() *Counters {
	return &Counters{}
}

// OnPush implements Tracker.
func (c *Counters) OnPush(ok bool) {
	if ok {
		c.pushed.Add(1)
	} else {
		c.full.Add(1)
	}
}

// OnPop implements Tracker.
func (c *Counters) OnPop(ok bool) {
	if ok {
		c.popped.Add(1)
	} else {
		c.popEmpty.Add(1)
	}
}

// OnSteal implements Tracker.
func (c *Counters) OnSteal(ok bool) {
	if ok {
		c.stolen.Add(1)
	} else {
		c.stealMis.Add(1)
	}
}

// Snapshot returns the current counts. Fields are loaded one by one, so
// the snapshot is not atomic as a whole while operations are in flight.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Pushed:     c.pushed.Load(),
		Full:       c.full.Load(),
		Popped:     c.popped.Load(),
		PopEmpty:   c.popEmpty.Load(),
		Stolen:     c.stolen.Load(),
		StealEmpty: c.stealMis.Load(),
	}
}

// Consumed returns items delivered by Pop or Steal.
func (s CounterSnapshot) Consumed() uint64 {
	return s.Popped + s.Stolen
}

// multi fans out to several trackers.
type multi []Tracker

// Multi returns a Tracker that forwards every event to each of ts.
// Nil entries are skipped.
func Multi(ts ...Tracker) Tracker {
	out := make(multi, 0, len(ts))
	for _, t := range ts {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (m multi) OnPush(ok bool) {
	for _, t := range m {
		t.OnPush(ok)
	}
}

func (m multi) OnPop(ok bool) {
	for _, t := range m {
		t.OnPop(ok)
	}
}

func (m multi) OnSteal(ok bool) {
	for _, t := range m {
		t.OnSteal(ok)
	}
}
