package shutdown

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestHandler_HookOrder(t *testing.T) {
	h := NewHandler(time.Second, nil)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"store", "metrics", "watcher"} {
		h.OnShutdown(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	h.Trigger()
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	want := []string{"watcher", "metrics", "store"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestHandler_JoinsErrors(t *testing.T) {
	h := NewHandler(time.Second, nil)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := false
	h.OnShutdown("a", func(context.Context) error { return errA })
	h.OnShutdown("ok", func(context.Context) error { ran = true; return nil })
	h.OnShutdown("b", func(context.Context) error { return errB })

	h.Trigger()
	err := h.Wait(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() error = %v, want both hook errors", err)
	}
	if !ran {
		t.Error("hook after a failing hook should still run")
	}
}

func TestHandler_ContextCancel(t *testing.T) {
	h := NewHandler(time.Second, nil)
	called := make(chan struct{})
	h.OnShutdown("hook", func(ctx context.Context) error {
		if ctx.Err() != nil {
			t.Errorf("hook context already done: %v", ctx.Err())
		}
		close(called)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
	<-called
	select {
	case <-h.Done():
	default:
		t.Error("Done should be closed")
	}
}

func TestHandler_HookDeadline(t *testing.T) {
	h := NewHandler(20*time.Millisecond, nil)
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.Trigger()
	if err := h.Wait(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestHandler_TriggerTwice(t *testing.T) {
	h := NewHandler(time.Second, nil)
	h.Trigger()
	h.Trigger()
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}
