package queue_test

import (
	"errors"
	"testing"

	"github.com/randomizedcoder/go-steal-queue/internal/queue"
)

func testQueue[T comparable](t *testing.T, q queue.Queue[T], val T, name string) {
	t.Helper()

	// Empty queue returns false
	if _, ok := q.Pop(); ok {
		t.Errorf("%s: expected Pop() = false on empty queue", name)
	}

	// Push succeeds
	if !q.Push(val) {
		t.Errorf("%s: expected Push() = true", name)
	}

	// Pop returns pushed value
	got, ok := q.Pop()
	if !ok {
		t.Errorf("%s: expected Pop() = true after Push()", name)
	}
	if got != val {
		t.Errorf("%s: expected %v, got %v", name, val, got)
	}

	// Queue is empty again
	if _, ok := q.Pop(); ok {
		t.Errorf("%s: expected Pop() = false after draining", name)
	}
}

func TestStealQueue(t *testing.T) {
	testQueue[int](t, queue.MustNew[int](8), 42, "StealQueue")
	testQueue[string](t, queue.MustNew[string](1), "job", "StealQueue/cap1")
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1, -1024} {
		q, err := queue.New[int](c)
		if !errors.Is(err, queue.ErrInvalidCapacity) {
			t.Errorf("New(%d): expected ErrInvalidCapacity, got %v", c, err)
		}
		if q != nil {
			t.Errorf("New(%d): expected nil queue", c)
		}
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected MustNew(0) to panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, queue.ErrInvalidCapacity) {
			t.Errorf("expected ErrInvalidCapacity panic, got %v", r)
		}
	}()
	queue.MustNew[int](0)
}

func TestStealQueue_Full(t *testing.T) {
	const k = 5
	q := queue.MustNew[int](k)
	for i := 0; i < k; i++ {
		if !q.Push(i) {
			t.Fatalf("expected Push(%d) = true", i)
		}
	}
	if q.Push(k) {
		t.Error("expected Push() = false on full queue")
	}
	if q.Len() != k {
		t.Errorf("expected Len() = %d, got %d", k, q.Len())
	}
}

func TestStealQueue_EmptyFullBoundary(t *testing.T) {
	q := queue.MustNew[int](4)

	if _, ok := q.Pop(); ok {
		t.Fatal("expected Pop() = false on fresh queue")
	}

	for i := 1; i <= 4; i++ {
		if !q.Push(i) {
			t.Fatalf("expected Push(%d) = true", i)
		}
	}
	if q.Push(5) {
		t.Fatal("expected 5th Push() = false")
	}

	for i := 1; i <= 4; i++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("expected Pop() = true for item %d", i)
		}
		if got != i {
			t.Errorf("FIFO violation: expected %d, got %d", i, got)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("expected Pop() = false after draining")
	}
}

func TestStealQueue_WrapAround(t *testing.T) {
	q := queue.MustNew[int](2)

	steps := []struct {
		op   string
		val  int
		want bool
	}{
		{"push", 1, true},
		{"push", 2, true},
		{"push", 3, false}, // full
		{"pop", 1, true},
		{"push", 3, true}, // wraps into the first cell
		{"pop", 2, true},
		{"pop", 3, true},
		{"pop", 0, false}, // empty
	}

	for i, s := range steps {
		switch s.op {
		case "push":
			if got := q.Push(s.val); got != s.want {
				t.Fatalf("step %d: expected Push(%d) = %v, got %v", i, s.val, s.want, got)
			}
		case "pop":
			got, ok := q.Pop()
			if ok != s.want {
				t.Fatalf("step %d: expected Pop() ok = %v, got %v", i, s.want, ok)
			}
			if ok && got != s.val {
				t.Fatalf("step %d: FIFO violation: expected %d, got %d", i, s.val, got)
			}
		}
	}
}

func TestStealQueue_FIFO(t *testing.T) {
	q := queue.MustNew[int](8)

	// Several laps so every cell is reused.
	for lap := 0; lap < 10; lap++ {
		for i := 0; i < 5; i++ {
			if !q.Push(lap*100 + i) {
				t.Fatalf("expected Push(%d) = true", lap*100+i)
			}
		}
		for i := 0; i < 5; i++ {
			got, ok := q.Pop()
			if !ok {
				t.Fatalf("expected Pop() = true for item %d", i)
			}
			if got != lap*100+i {
				t.Errorf("FIFO violation: expected %d, got %d", lap*100+i, got)
			}
		}
	}
}

func TestStealQueue_LenCap(t *testing.T) {
	q := queue.MustNew[int](6)

	if q.Len() != 0 {
		t.Errorf("expected Len() = 0, got %d", q.Len())
	}
	if q.Cap() != 6 {
		t.Errorf("expected Cap() = 6 (not rounded), got %d", q.Cap())
	}

	q.Push(1)
	q.Push(2)

	if q.Len() != 2 {
		t.Errorf("expected Len() = 2, got %d", q.Len())
	}

	q.Pop()
	if q.Len() != 1 {
		t.Errorf("expected Len() = 1, got %d", q.Len())
	}
}

func TestStealQueue_Steal(t *testing.T) {
	victim := queue.MustNew[int](4)
	thief := queue.MustNew[int](1)

	if _, ok := thief.Steal(victim); ok {
		t.Error("expected Steal() = false on empty victim")
	}

	victim.Push(10)
	victim.Push(20)

	got, ok := thief.Steal(victim)
	if !ok || got != 10 {
		t.Errorf("expected Steal() = (10, true), got (%d, %v)", got, ok)
	}
	if thief.Len() != 0 {
		t.Errorf("expected thief Len() = 0, got %d", thief.Len())
	}
	if victim.Len() != 1 {
		t.Errorf("expected victim Len() = 1, got %d", victim.Len())
	}

	got, ok = victim.Pop()
	if !ok || got != 20 {
		t.Errorf("expected Pop() = (20, true), got (%d, %v)", got, ok)
	}
}

func TestStealQueue_SelfSteal(t *testing.T) {
	popped := queue.MustNew[int](3)
	stolen := queue.MustNew[int](3)

	ops := []int{1, 2, 3}
	for _, v := range ops {
		popped.Push(v)
		stolen.Push(v)
	}

	for i := 0; i < len(ops)+1; i++ {
		pv, pok := popped.Pop()
		sv, sok := stolen.Steal(stolen)
		if pv != sv || pok != sok {
			t.Errorf("step %d: Pop() = (%d, %v), self Steal() = (%d, %v)", i, pv, pok, sv, sok)
		}
	}
}

func TestStealQueue_PointerReleased(t *testing.T) {
	type job struct{ id int }
	q := queue.MustNew[*job](2)

	q.Push(&job{id: 1})
	got, ok := q.Pop()
	if !ok || got.id != 1 {
		t.Fatalf("expected job 1, got %v, %v", got, ok)
	}

	// After a full lap the cell must hold the new value only.
	q.Push(&job{id: 2})
	q.Push(&job{id: 3})
	for _, want := range []int{2, 3} {
		got, ok := q.Pop()
		if !ok || got.id != want {
			t.Errorf("expected job %d, got %v, %v", want, got, ok)
		}
	}
}

func TestCounters(t *testing.T) {
	c := queue.NewCounters()
	q := queue.MustNew[int](2, queue.WithTracker(c))
	thief := queue.MustNew[int](2, queue.WithTracker(c))

	q.Push(1)
	q.Push(2)
	q.Push(3) // full
	q.Pop()
	thief.Steal(q)
	q.Pop()        // empty
	thief.Steal(q) // empty

	got := c.Snapshot()
	want := queue.CounterSnapshot{
		Pushed:     2,
		Full:       1,
		Popped:     1,
		PopEmpty:   1,
		Stolen:     1,
		StealEmpty: 1,
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if got.Consumed() != 2 {
		t.Errorf("expected Consumed() = 2, got %d", got.Consumed())
	}
}

func TestMulti(t *testing.T) {
	a, b := queue.NewCounters(), queue.NewCounters()
	q := queue.MustNew[int](1, queue.WithTracker(queue.Multi(a, nil, b)))

	q.Push(1)
	q.Pop()

	for name, c := range map[string]*queue.Counters{"a": a, "b": b} {
		s := c.Snapshot()
		if s.Pushed != 1 || s.Popped != 1 {
			t.Errorf("%s: expected 1 push and 1 pop, got %+v", name, s)
		}
	}
}

func TestWithTracker_Nil(t *testing.T) {
	q := queue.MustNew[int](1, queue.WithTracker(nil))
	if !q.Push(1) {
		t.Error("expected Push() = true with nil tracker option")
	}
}

// Test that the implementation satisfies both interfaces
func TestQueueInterface(t *testing.T) {
	testCases := []struct {
		name string
		q    queue.Stealer[int]
	}{
		{"Cap1", queue.MustNew[int](1)},
		{"Cap7", queue.MustNew[int](7)},
		{"Cap1024", queue.MustNew[int](1024)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testQueue[int](t, tc.q, 42, tc.name)
		})
	}
}
