// Command stealbench measures the steal queue against the alternatives a
// worker pool would otherwise use.
//
// Modes:
//
//	control  worker loop iteration (stop check, sample tick, pop/steal)
//	         under each group stop signal and sampling ticker
//	single   push+pop on one goroutine, StealQueue vs buffered channel
//	mpmc     P producers and C consumers on one shared queue
//	ring     4 producers, 1 consumer: StealQueue vs go-lock-free-ring
//	group    a worksteal.Group draining n items from P producers
//	all      every mode above
//
// Usage:
//
//	go run ./cmd/stealbench -mode all -n 1000000 -metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	ring "github.com/randomizedcoder/go-lock-free-ring"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-steal-queue/internal/cancel"
	"github.com/randomizedcoder/go-steal-queue/internal/queue"
	"github.com/randomizedcoder/go-steal-queue/internal/telemetry"
	"github.com/randomizedcoder/go-steal-queue/internal/tick"
	"github.com/randomizedcoder/go-steal-queue/internal/worksteal"
)

const divider = "─────────────────────────────────────────────────────────"

type options struct {
	mode      string
	n         int
	capacity  int
	producers int
	consumers int
	workers   int
	metrics   bool
	timeout   time.Duration
	stop      string
	sampling  string
}

var stopSignals = map[string]worksteal.StopSignal{
	"atomic":  worksteal.StopAtomic,
	"context": worksteal.StopContext,
}

var samplings = map[string]worksteal.Sampling{
	"shared":    worksteal.SampleShared,
	"perworker": worksteal.SamplePerWorker,
	"batched":   worksteal.SampleBatched,
}

func main() {
	var o options
	flag.StringVar(&o.mode, "mode", "all", "control, single, mpmc, ring, group or all")
	flag.IntVar(&o.n, "n", 1_000_000, "number of items (iterations for control and single)")
	flag.IntVar(&o.capacity, "capacity", 1024, "queue capacity")
	flag.IntVar(&o.producers, "producers", 4, "producer goroutines")
	flag.IntVar(&o.consumers, "consumers", 4, "consumer goroutines for mpmc")
	flag.IntVar(&o.workers, "workers", runtime.GOMAXPROCS(0), "worker loops for group")
	flag.BoolVar(&o.metrics, "metrics", false, "record queue operations with OpenTelemetry and print the totals")
	flag.DurationVar(&o.timeout, "timeout", time.Minute, "abort a run after this long")
	flag.StringVar(&o.stop, "stop", "atomic", "group stop signal: atomic or context")
	flag.StringVar(&o.sampling, "sampling", "shared", "group occupancy sampling: shared, perworker or batched")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(o, logger); err != nil {
		logger.Error("stealbench failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(o options, logger *slog.Logger) error {
	if o.n <= 0 || o.producers <= 0 || o.consumers <= 0 {
		return errors.New("n, producers and consumers must be positive")
	}

	ctx, cancelRun := context.WithTimeout(context.Background(), o.timeout)
	defer cancelRun()

	var reader *sdkmetric.ManualReader
	if o.metrics {
		reader = sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				logger.Warn("meter provider shutdown", slog.Any("error", err))
			}
		}()
	}

	fmt.Printf("stealbench: mode=%s n=%d capacity=%d GOMAXPROCS=%d\n",
		o.mode, o.n, o.capacity, runtime.GOMAXPROCS(0))
	fmt.Println(divider)
	fmt.Println()

	modes := map[string]func(context.Context, options, *slog.Logger) error{
		"control": runControl,
		"single":  runSingle,
		"mpmc":    runMPMC,
		"ring":    runRing,
		"group":   runGroup,
	}
	order := []string{"control", "single", "mpmc", "ring", "group"}

	if o.mode != "all" {
		if _, ok := modes[o.mode]; !ok {
			return fmt.Errorf("unknown mode %q", o.mode)
		}
		order = []string{o.mode}
	}
	for _, name := range order {
		logger.Debug("running mode", slog.String("mode", name))
		if err := modes[name](ctx, o, logger); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if reader != nil {
		return printMetrics(ctx, reader)
	}
	return nil
}

// tracker returns the OpenTelemetry tracker for a named queue, or nil when
// metrics are off.
func tracker(o options, name string) (queue.Tracker, error) {
	if !o.metrics {
		return nil, nil
	}
	t, err := telemetry.NewGlobalTracker(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func queueOpts(t queue.Tracker) []queue.Option {
	if t == nil {
		return nil
	}
	return []queue.Option{queue.WithTracker(t)}
}

func perOp(d time.Duration, n int) float64 {
	return float64(d.Nanoseconds()) / float64(n)
}

func printResult(label string, d time.Duration, n int) {
	fmt.Printf("  %s:\n", label)
	fmt.Printf("    Total: %v, Per-op: %.2f ns, %.2f Mops/s\n",
		d, perOp(d, n), float64(n)/d.Seconds()/1e6)
}

func printSpeedup(base, d time.Duration) {
	fmt.Printf("    Speedup: %.2fx\n", float64(base)/float64(d))
}

// workerIteration is one pass of a worker loop over its own queue and one
// peer: pop own, else steal, and hand the item to the other queue so the
// next pass has work.
func workerIteration(own, peer *queue.StealQueue[int]) {
	if v, ok := own.Pop(); ok {
		peer.Push(v)
	} else if v, ok := own.Steal(peer); ok {
		own.Push(v)
	}
}

// timeWorkerLoop runs n worker-loop iterations polling stop and t.
func timeWorkerLoop(n, capacity int, stop cancel.Canceler, t tick.Ticker) (time.Duration, error) {
	own, err := queue.New[int](capacity)
	if err != nil {
		return 0, err
	}
	peer, err := queue.New[int](capacity)
	if err != nil {
		return 0, err
	}
	for i := 0; i < capacity; i++ {
		peer.Push(i)
	}
	defer t.Stop()

	start := time.Now()
	for i := 0; i < n && !stop.Done(); i++ {
		_ = t.Tick()
		workerIteration(own, peer)
	}
	return time.Since(start), nil
}

// runControl times worker-loop iterations under each stop signal and
// sampling ticker a worksteal.Group can be configured with.
func runControl(ctx context.Context, o options, _ *slog.Logger) error {
	interval := time.Hour // Long so we measure check overhead, not actual ticks

	fmt.Println("Worker loop: stop check + sample tick + pop/steal")
	fmt.Println(divider)

	ctxCancel := cancel.NewContext(ctx)
	defer ctxCancel.Cancel()
	stdDur, err := timeWorkerLoop(o.n, o.capacity, ctxCancel, tick.NewTicker(interval))
	if err != nil {
		return err
	}

	atomicCancel := cancel.NewAtomic()
	release := cancel.Watch(ctx, atomicCancel)
	defer release()
	optDur, err := timeWorkerLoop(o.n, o.capacity, atomicCancel, tick.NewAtomicTicker(interval))
	if err != nil {
		return err
	}
	batchDur, err := timeWorkerLoop(o.n, o.capacity, atomicCancel, tick.NewBatch(interval, worksteal.DefaultSampleBatch))
	if err != nil {
		return err
	}

	printResult("StopContext + SamplePerWorker (ctx + time.Ticker)", stdDur, o.n)
	printResult("StopAtomic + SampleShared (atomic + AtomicTicker)", optDur, o.n)
	printSpeedup(stdDur, optDur)
	printResult("StopAtomic + SampleBatched (atomic + BatchTicker)", batchDur, o.n)
	printSpeedup(stdDur, batchDur)
	fmt.Println()
	return ctx.Err()
}

// runSingle times an uncontended push followed by a pop.
func runSingle(_ context.Context, o options, _ *slog.Logger) error {
	t, err := tracker(o, "single")
	if err != nil {
		return err
	}
	q, err := queue.New[int](o.capacity, queueOpts(t)...)
	if err != nil {
		return err
	}
	ch := make(chan int, o.capacity)

	fmt.Println("Single goroutine push+pop")
	fmt.Println(divider)

	start := time.Now()
	for i := 0; i < o.n; i++ {
		ch <- i
		<-ch
	}
	chDur := time.Since(start)

	start = time.Now()
	for i := 0; i < o.n; i++ {
		q.Push(i)
		q.Pop()
	}
	qDur := time.Since(start)

	printResult("Channel", chDur, o.n)
	printResult("StealQueue", qDur, o.n)
	printSpeedup(chDur, qDur)
	fmt.Println()
	return nil
}

// split returns how many of n items producer p sends.
func split(n, producers, p int) int {
	per := n / producers
	if p < n%producers {
		per++
	}
	return per
}

func pushSpin(ctx context.Context, q *queue.StealQueue[int], v int) error {
	for !q.Push(v) {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// runMPMC moves n items through one shared queue with several producers and
// consumers, then does the same over a buffered channel.
func runMPMC(ctx context.Context, o options, logger *slog.Logger) error {
	t, err := tracker(o, "mpmc")
	if err != nil {
		return err
	}
	q, err := queue.New[int](o.capacity, queueOpts(t)...)
	if err != nil {
		return err
	}

	fmt.Printf("MPMC: %d producers, %d consumers\n", o.producers, o.consumers)
	fmt.Println(divider)

	var consumed atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < o.producers; p++ {
		count := split(o.n, o.producers, p)
		g.Go(func() error {
			for i := 0; i < count; i++ {
				if err := pushSpin(gctx, q, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for c := 0; c < o.consumers; c++ {
		g.Go(func() error {
			for consumed.Load() < int64(o.n) {
				if _, ok := q.Pop(); ok {
					consumed.Add(1)
					continue
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				runtime.Gosched()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	qDur := time.Since(start)

	ch := make(chan int, o.capacity)
	start = time.Now()
	var consumers sync.WaitGroup
	consumers.Add(o.consumers)
	for c := 0; c < o.consumers; c++ {
		go func() {
			defer consumers.Done()
			for range ch {
			}
		}()
	}
	var producers errgroup.Group
	for p := 0; p < o.producers; p++ {
		count := split(o.n, o.producers, p)
		producers.Go(func() error {
			for i := 0; i < count; i++ {
				ch <- i
			}
			return nil
		})
	}
	_ = producers.Wait()
	close(ch)
	consumers.Wait()
	chDur := time.Since(start)

	logger.Debug("mpmc done", slog.Int64("consumed", consumed.Load()), slog.Int("left", q.Len()))

	printResult("Channel", chDur, o.n)
	printResult("StealQueue", qDur, o.n)
	printSpeedup(chDur, qDur)
	fmt.Println()
	return nil
}

// runRing times the producer side of a 4-producer, 1-consumer pipeline.
func runRing(ctx context.Context, o options, _ *slog.Logger) error {
	const producers = 4

	fmt.Println("MPSC producer side: 4 producers, 1 spinning consumer")
	fmt.Println(divider)

	r, err := ring.NewShardedRing(1024, 4)
	if err != nil {
		return err
	}
	ringDur, err := timeMPSC(ctx, o.n, producers,
		func(pid, v int) bool { return r.Write(uint64(pid), v) },
		func() { r.TryRead() },
	)
	if err != nil {
		return err
	}

	q, err := queue.New[int](o.capacity)
	if err != nil {
		return err
	}
	qDur, err := timeMPSC(ctx, o.n, producers,
		func(_, v int) bool { return q.Push(v) },
		func() { q.Pop() },
	)
	if err != nil {
		return err
	}

	printResult("go-lock-free-ring (4 shards)", ringDur, o.n)
	printResult("StealQueue", qDur, o.n)
	printSpeedup(ringDur, qDur)
	fmt.Println()
	return nil
}

func timeMPSC(ctx context.Context, n, producers int, write func(pid, v int) bool, read func()) (time.Duration, error) {
	stop := cancel.NewAtomic()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for !stop.Done() {
			read()
		}
	}()
	defer func() {
		stop.Cancel()
		<-done
	}()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < producers; p++ {
		count := split(n, producers, p)
		g.Go(func() error {
			for i := 0; i < count; i++ {
				for !write(p, i) {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return time.Since(start), err
}

// runGroup drains n items submitted by producers through a worker group.
func runGroup(ctx context.Context, o options, logger *slog.Logger) error {
	counters := queue.NewCounters()
	t, err := tracker(o, "group")
	if err != nil {
		return err
	}

	cfg := worksteal.DefaultConfig()
	cfg.Workers = o.workers
	cfg.QueueCapacity = o.capacity
	cfg.Logger = logger
	cfg.Tracker = queue.Multi(counters, t)
	var ok bool
	if cfg.StopSignal, ok = stopSignals[o.stop]; !ok {
		return fmt.Errorf("unknown stop signal %q", o.stop)
	}
	if cfg.Sampling, ok = samplings[o.sampling]; !ok {
		return fmt.Errorf("unknown sampling %q", o.sampling)
	}

	grp, err := worksteal.New[int](cfg)
	if err != nil {
		return err
	}
	defer grp.Release()

	fmt.Printf("Work-stealing group: %d workers, %d producers, stop=%s sampling=%s\n",
		grp.Workers(), o.producers, o.stop, o.sampling)
	fmt.Println(divider)

	var sum atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grp.Drain(gctx, int64(o.n), func(_ int, v int) {
			sum.Add(int64(v))
		})
	})
	for p := 0; p < o.producers; p++ {
		count := split(o.n, o.producers, p)
		g.Go(func() error {
			// Producers target a single worker so the others must steal.
			for i := 0; i < count; i++ {
				for !grp.Submit(0, i) {
					if err := gctx.Err(); err != nil {
						return err
					}
					runtime.Gosched()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	dur := time.Since(start)

	stats := grp.Stats()
	snap := counters.Snapshot()
	printResult("Group", dur, o.n)
	fmt.Printf("    Handled: %d, Stolen: %d (%.1f%%)\n",
		stats.Handled(), stats.Stolen(), 100*float64(stats.Stolen())/float64(stats.Handled()))
	fmt.Printf("    Full pushes: %d, Empty pops: %d, Empty steals: %d\n",
		snap.Full, snap.PopEmpty, snap.StealEmpty)
	for w, ws := range stats.Workers {
		fmt.Printf("    worker %2d: handled=%d stolen=%d\n", w, ws.Handled, ws.Stolen)
	}
	fmt.Println()
	return nil
}

func printMetrics(ctx context.Context, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	fmt.Println("OpenTelemetry counters")
	fmt.Println(divider)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				q, _ := dp.Attributes.Value("queue")
				outcome, _ := dp.Attributes.Value("outcome")
				fmt.Printf("  %-18s queue=%-7s outcome=%-6s %d\n",
					m.Name, q.AsString(), outcome.AsString(), dp.Value)
			}
		}
	}
	return nil
}
