// Package worksteal drives a set of steal queues the way work-stealing
// workers use them.
//
// Each worker owns one queue. Its loop pops the own queue first, then steals
// from the peers in round-robin order starting at the next worker, and backs
// off when every queue came up empty:
//
//	spin  -> first 64 empty rounds, re-probe immediately
//	yield -> next 256 rounds, runtime.Gosched
//	sleep -> afterwards, 50µs per round
//
// The loops run on an ants goroutine pool. Each Run installs a fresh stop
// signal (see StopSignal) that the run context or Stop trips.
package worksteal

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sys/cpu"

	"github.com/randomizedcoder/go-steal-queue/internal/cancel"
	"github.com/randomizedcoder/go-steal-queue/internal/queue"
	"github.com/randomizedcoder/go-steal-queue/internal/tick"
)

// Handler processes one item on the worker that obtained it.
type Handler[T any] func(worker int, v T)

// workerStats is written by a single worker and read by Stats.
type workerStats struct {
	handled atomic.Uint64
	stolen  atomic.Uint64
	panics  atomic.Uint64
	_       cpu.CacheLinePad
}

// runSignal holds the stop signal of the Run in progress.
type runSignal struct {
	cancel.Canceler
}

// Group is a fixed set of workers, each owning a queue.StealQueue.
type Group[T any] struct {
	logger *slog.Logger
	queues []*queue.StealQueue[T]
	stats  []workerStats
	pool   *ants.Pool

	stopSignal  StopSignal
	sampling    Sampling
	interval    time.Duration
	sampleBatch int
	shared      tick.Ticker // SampleShared only

	signal   atomic.Pointer[runSignal]
	next     atomic.Uint64 // round-robin cursor for Push
	running  atomic.Bool
	released atomic.Bool
}

// New creates a Group from cfg.
func New[T any](cfg Config) (*Group[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts []queue.Option
	if cfg.Tracker != nil {
		opts = append(opts, queue.WithTracker(cfg.Tracker))
	}

	queues := make([]*queue.StealQueue[T], cfg.Workers)
	for i := range queues {
		q, err := queue.New[T](cfg.QueueCapacity, opts...)
		if err != nil {
			return nil, fmt.Errorf("worksteal: queue %d: %w", i, err)
		}
		queues[i] = q
	}

	pool, err := ants.NewPool(cfg.Workers,
		ants.WithPreAlloc(true),
		ants.WithPanicHandler(func(p any) {
			logger.Error("worksteal worker goroutine panicked", slog.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("worksteal: create pool: %w", err)
	}

	g := &Group[T]{
		logger:      logger,
		queues:      queues,
		stats:       make([]workerStats, cfg.Workers),
		pool:        pool,
		stopSignal:  cfg.StopSignal,
		sampling:    cfg.Sampling,
		interval:    cfg.SampleInterval,
		sampleBatch: cfg.SampleBatch,
	}
	if cfg.Sampling == SampleShared {
		g.shared = tick.New(cfg.SampleInterval)
	}
	return g, nil
}

// Workers returns the number of workers.
func (g *Group[T]) Workers() int {
	return len(g.queues)
}

// Queue returns the queue owned by worker w. Producers may push to it
// directly.
func (g *Group[T]) Queue(w int) *queue.StealQueue[T] {
	return g.queues[w]
}

// Submit pushes v onto worker w's queue, or onto the first peer after w
// with room. It returns false when every queue is full.
func (g *Group[T]) Submit(w int, v T) bool {
	n := len(g.queues)
	w %= n
	if w < 0 {
		w += n
	}
	for i := 0; i < n; i++ {
		if g.queues[(w+i)%n].Push(v) {
			return true
		}
	}
	return false
}

// Push spreads items over the workers round-robin.
func (g *Group[T]) Push(v T) bool {
	w := int(g.next.Add(1) % uint64(len(g.queues)))
	return g.Submit(w, v)
}

// Run starts one loop per worker and blocks until ctx is done or Stop is
// called. It returns ctx.Err() if the context ended the run, nil otherwise.
// Items still queued when Run returns stay queued for the next Run.
func (g *Group[T]) Run(ctx context.Context, h Handler[T]) error {
	if g.released.Load() {
		return ErrReleased
	}
	if !g.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer g.running.Store(false)

	var stop cancel.Canceler
	switch g.stopSignal {
	case StopContext:
		cc := cancel.NewContext(ctx)
		defer cc.Cancel()
		stop = cc
	default:
		ac := cancel.NewAtomic()
		release := cancel.Watch(ctx, ac)
		defer release()
		stop = ac
	}
	g.signal.Store(&runSignal{stop})
	defer g.signal.Store(nil)

	n := len(g.queues)
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(n)
	for w := 0; w < n; w++ {
		err := g.pool.Submit(func() {
			defer wg.Done()
			g.loop(w, h, stop)
		})
		if err != nil {
			stop.Cancel()
			wg.Add(w - n) // loops w..n-1 never started
			wg.Wait()
			return fmt.Errorf("worksteal: start worker %d: %w", w, err)
		}
	}
	g.logger.Info("worksteal group started",
		slog.Int("workers", n),
		slog.Int("stop_signal", int(g.stopSignal)),
		slog.Int("sampling", int(g.sampling)),
	)

	wg.Wait()

	s := g.Stats()
	g.logger.Info("worksteal group stopped",
		slog.Duration("elapsed", time.Since(start)),
		slog.Uint64("handled", s.Handled()),
		slog.Uint64("stolen", s.Stolen()),
	)
	return ctx.Err()
}

// Drain runs the group until total items have been handled, then stops it.
func (g *Group[T]) Drain(ctx context.Context, total int64, h Handler[T]) error {
	if total <= 0 {
		return nil
	}
	var left atomic.Int64
	left.Store(total)
	return g.Run(ctx, func(w int, v T) {
		defer func() {
			if left.Add(-1) == 0 {
				g.Stop()
			}
		}()
		h(w, v)
	})
}

// Stop ends the Run in progress. Loops finish the item in hand and exit.
//
// Stop only reaches a Run that has installed its stop signal. It has no
// effect while no Run is active, and a Stop racing with the start of Run
// may be lost; cancel the Run's context to stop it reliably.
func (g *Group[T]) Stop() {
	if s := g.signal.Load(); s != nil {
		s.Cancel()
	}
}

// Release stops the group and frees its goroutine pool. The group cannot
// be run again afterwards.
func (g *Group[T]) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.Stop()
	g.pool.Release()
	if g.shared != nil {
		g.shared.Stop()
	}
}

func (g *Group[T]) loop(w int, h Handler[T], stop cancel.Canceler) {
	own := g.queues[w]
	sampler, sample := g.workerSampler(w)
	if sampler != nil && g.sampling != SampleShared {
		defer sampler.Stop()
	}

	idle := 0
	for !stop.Done() {
		if sampler != nil && sampler.Tick() {
			sample()
		}

		if v, ok := own.Pop(); ok {
			g.handle(w, v, h, false)
			idle = 0
			continue
		}
		if v, ok := g.steal(w); ok {
			g.handle(w, v, h, true)
			idle = 0
			continue
		}

		idle++
		switch {
		case idle <= spinProbes:
		case idle <= yieldProbes:
			runtime.Gosched()
		default:
			time.Sleep(idleSleep)
		}
	}
}

// steal probes the peers of w, starting with w+1.
func (g *Group[T]) steal(w int) (T, bool) {
	n := len(g.queues)
	thief := g.queues[w]
	for i := 1; i < n; i++ {
		if v, ok := thief.Steal(g.queues[(w+i)%n]); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (g *Group[T]) handle(w int, v T, h Handler[T], stolen bool) {
	st := &g.stats[w]
	st.handled.Add(1)
	if stolen {
		st.stolen.Add(1)
	}
	defer func() {
		if r := recover(); r != nil {
			st.panics.Add(1)
			g.logger.Error("worksteal handler panicked",
				slog.Int("worker", w),
				slog.Any("panic", r),
			)
		}
	}()
	h(w, v)
}

// workerSampler returns the ticker loop w polls and what it does on a tick.
func (g *Group[T]) workerSampler(w int) (tick.Ticker, func()) {
	if g.interval <= 0 {
		return nil, nil
	}
	switch g.sampling {
	case SamplePerWorker:
		return tick.NewTicker(g.interval), func() { g.sampleWorker(w) }
	case SampleBatched:
		return tick.NewBatch(g.interval, g.sampleBatch), func() { g.sampleWorker(w) }
	default:
		return g.shared, g.sample
	}
}

func (g *Group[T]) sampleWorker(w int) {
	g.logger.Debug("worksteal worker occupancy",
		slog.Int("worker", w),
		slog.Int("len", g.queues[w].Len()),
	)
}

func (g *Group[T]) sample() {
	occ := g.Occupancy()
	total := 0
	for _, n := range occ {
		total += n
	}
	g.logger.Debug("worksteal occupancy",
		slog.Int("total", total),
		slog.Any("queues", occ),
	)
}

// Occupancy returns the approximate length of every worker queue.
func (g *Group[T]) Occupancy() []int {
	occ := make([]int, len(g.queues))
	for i, q := range g.queues {
		occ[i] = q.Len()
	}
	return occ
}
