package worksteal

import (
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/randomizedcoder/go-steal-queue/internal/queue"
	"github.com/randomizedcoder/go-steal-queue/internal/tick"
)

var (
	// ErrInvalidWorkers is returned by New when Config.Workers is not positive.
	ErrInvalidWorkers = errors.New("worksteal: workers must be greater than zero")
	// ErrRunning is returned by Run when the group is already running.
	ErrRunning = errors.New("worksteal: group is already running")
	// ErrReleased is returned by Run after Release.
	ErrReleased = errors.New("worksteal: group has been released")
	// ErrInvalidMode is returned by New for an unknown StopSignal or Sampling.
	ErrInvalidMode = errors.New("worksteal: unknown stop signal or sampling mode")
)

// StopSignal selects what worker loops poll to learn that a run is over.
type StopSignal int

const (
	// StopAtomic makes loops poll an atomic flag. A context watcher sets
	// the flag when the run context ends.
	StopAtomic StopSignal = iota
	// StopContext makes loops poll the run context's Done channel through
	// a cancel.ContextCanceler.
	StopContext
)

// Sampling selects how worker loops decide when to log queue occupancy.
type Sampling int

const (
	// SampleShared makes all loops poll one tick.AtomicTicker. The loop
	// that wins the interval logs the occupancy of every queue.
	SampleShared Sampling = iota
	// SamplePerWorker gives each loop a tick.StdTicker. Each loop logs the
	// occupancy of its own queue.
	SamplePerWorker
	// SampleBatched gives each loop a tick.BatchTicker that reads the clock
	// once per SampleBatch iterations. Each loop logs its own queue.
	SampleBatched
)

// DefaultSampleBatch is the SampleBatched clock-read stride of DefaultConfig.
const DefaultSampleBatch = 1024

// Idle backoff thresholds, in consecutive empty probes of every queue.
const (
	spinProbes  = 64
	yieldProbes = spinProbes + 256
	idleSleep   = 50 * time.Microsecond
)

// Config configures a Group.
type Config struct {
	// Workers is the number of worker loops, one queue each.
	Workers int
	// QueueCapacity is the capacity of every worker queue.
	QueueCapacity int
	// SampleInterval is how often one worker logs queue occupancy at
	// debug level. Zero disables sampling.
	SampleInterval time.Duration
	// Logger receives lifecycle, sampling and recovered panic records.
	// Nil means slog.Default().
	Logger *slog.Logger
	// Tracker observes every queue of the group. Nil means none.
	Tracker queue.Tracker
	// StopSignal is what loops poll for the end of a run.
	StopSignal StopSignal
	// Sampling chooses the ticker behind SampleInterval.
	Sampling Sampling
	// SampleBatch is the clock-read stride for SampleBatched.
	SampleBatch int
}

// DefaultConfig returns one worker per P with 1024-slot queues.
func DefaultConfig() Config {
	return Config{
		Workers:        runtime.GOMAXPROCS(0),
		QueueCapacity:  1024,
		SampleInterval: tick.DefaultInterval,
		SampleBatch:    DefaultSampleBatch,
	}
}

func (c Config) validate() error {
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.QueueCapacity <= 0 {
		return queue.ErrInvalidCapacity
	}
	if c.StopSignal < StopAtomic || c.StopSignal > StopContext ||
		c.Sampling < SampleShared || c.Sampling > SampleBatched {
		return ErrInvalidMode
	}
	return nil
}
