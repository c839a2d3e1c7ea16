package cancel_test

import (
	"context"
	"testing"
	"time"

	"github.com/randomizedcoder/go-steal-queue/internal/cancel"
)

func TestContextCanceler_Context(t *testing.T) {
	c := cancel.NewContext(context.Background())

	ctx := c.Context()
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	if ctx.Err() != nil {
		t.Error("expected context to not be done")
	}

	c.Cancel()

	if ctx.Err() == nil {
		t.Error("expected context to be done after Cancel()")
	}
}

func TestContextCanceler_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	c := cancel.NewContext(parent)

	cancelParent()
	if !c.Done() {
		t.Error("expected Done() = true after parent cancelled")
	}
}

func TestWatch(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	c := cancel.NewAtomic()
	release := cancel.Watch(ctx, c)
	defer release()

	if c.Done() {
		t.Fatal("expected Done() = false before context cancel")
	}

	cancelCtx()
	waitDone(t, c)
}

func TestWatch_Release(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	c := cancel.NewAtomic()

	release := cancel.Watch(ctx, c)
	release()
	release() // idempotent

	cancelCtx()
	time.Sleep(10 * time.Millisecond)
	if c.Done() {
		t.Error("expected Done() = false after watcher released")
	}
}

func TestWatch_AlreadyCancelled(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	cancelCtx()

	c := cancel.NewAtomic()
	release := cancel.Watch(ctx, c)
	defer release()
	waitDone(t, c)
}

// waitDone polls c for up to a second; AfterFunc runs in its own goroutine.
func waitDone(t *testing.T, c cancel.Canceler) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !c.Done() {
		if time.Now().After(deadline) {
			t.Fatal("expected Done() = true after context cancelled")
		}
		time.Sleep(time.Millisecond)
	}
}

// Test that both implementations satisfy the interface and are idempotent
func TestCancelerInterface(t *testing.T) {
	testCases := []struct {
		name string
		c    cancel.Canceler
	}{
		{"Context", cancel.NewContext(context.Background())},
		{"Atomic", cancel.NewAtomic()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.c.Done() {
				t.Error("expected Done() = false initially")
			}

			tc.c.Cancel()
			if !tc.c.Done() {
				t.Error("expected Done() = true after Cancel()")
			}

			tc.c.Cancel()
			if !tc.c.Done() {
				t.Error("expected Done() = true after second Cancel()")
			}
		})
	}
}
