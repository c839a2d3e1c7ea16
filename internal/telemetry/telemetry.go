// Package telemetry records steal queue outcomes as OpenTelemetry metrics.
//
// Instruments:
//   - stealqueue.push (Int64Counter): push attempts, outcome "ok" or "full"
//   - stealqueue.pop (Int64Counter): pop attempts, outcome "ok" or "empty"
//   - stealqueue.steal (Int64Counter): steal attempts, outcome "ok" or "empty"
//
// Every data point also carries a "queue" attribute naming the tracked queue
// (or group of queues).
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/randomizedcoder/go-steal-queue/internal/queue"
)

// meterName is the instrumentation scope name for steal queue metrics.
const meterName = "github.com/randomizedcoder/go-steal-queue"

// Metric names.
const (
	PushCounter  = "stealqueue.push"
	PopCounter   = "stealqueue.pop"
	StealCounter = "stealqueue.steal"
)

// Outcome attribute values.
const (
	OutcomeOK    = "ok"
	OutcomeFull  = "full"
	OutcomeEmpty = "empty"
)

var _ queue.Tracker = (*Tracker)(nil)

// Tracker is a queue.Tracker backed by OTel counters.
//
// Attribute sets are built once in NewTracker, so recording does not
// allocate.
type Tracker struct {
	push  metric.Int64Counter
	pop   metric.Int64Counter
	steal metric.Int64Counter

	pushOK, pushFull   metric.AddOption
	popOK, popEmpty    metric.AddOption
	stealOK, stealMiss metric.AddOption
}

// NewGlobalTracker creates a Tracker on the global MeterProvider. Without a
// configured provider the instruments are noops.
func NewGlobalTracker(name string) (*Tracker, error) {
	return NewTracker(otel.Meter(meterName), name)
}

// NewTracker creates a Tracker whose data points carry queue=name.
func NewTracker(meter metric.Meter, name string) (*Tracker, error) {
	push, err := meter.Int64Counter(PushCounter,
		metric.WithDescription("Push attempts on steal queues"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create %s: %w", PushCounter, err)
	}
	pop, err := meter.Int64Counter(PopCounter,
		metric.WithDescription("Pop attempts on steal queues"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create %s: %w", PopCounter, err)
	}
	steal, err := meter.Int64Counter(StealCounter,
		metric.WithDescription("Steal attempts by thieves"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create %s: %w", StealCounter, err)
	}

	q := attribute.String("queue", name)
	with := func(outcome string) metric.AddOption {
		return metric.WithAttributeSet(attribute.NewSet(q, attribute.String("outcome", outcome)))
	}

	return &Tracker{
		push:      push,
		pop:       pop,
		steal:     steal,
		pushOK:    with(OutcomeOK),
		pushFull:  with(OutcomeFull),
		popOK:     with(OutcomeOK),
		popEmpty:  with(OutcomeEmpty),
		stealOK:   with(OutcomeOK),
		stealMiss: with(OutcomeEmpty),
	}, nil
}

// OnPush implements queue.Tracker.
func (t *Tracker) OnPush(ok bool) {
	if ok {
		t.push.Add(context.Background(), 1, t.pushOK)
		return
	}
	t.push.Add(context.Background(), 1, t.pushFull)
}

// OnPop implements queue.Tracker.
func (t *Tracker) OnPop(ok bool) {
	if ok {
		t.pop.Add(context.Background(), 1, t.popOK)
		return
	}
	t.pop.Add(context.Background(), 1, t.popEmpty)
}

// OnSteal implements queue.Tracker.
func (t *Tracker) OnSteal(ok bool) {
	if ok {
		t.steal.Add(context.Background(), 1, t.stealOK)
		return
	}
	t.steal.Add(context.Background(), 1, t.stealMiss)
}
