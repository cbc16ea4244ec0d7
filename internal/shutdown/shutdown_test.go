package shutdown_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"kairon/internal/shutdown"
)

// TestShutdownRunsCleanups verifies Wait runs cleanups once shutdown starts.
func TestShutdownRunsCleanups(t *testing.T) {
	mgr := shutdown.NewManager(context.Background())

	var called atomic.Bool
	mgr.RegisterCleanup("close-db", func(ctx context.Context) error {
		called.Store(true)
		return nil
	})

	mgr.Shutdown()
	if err := mgr.Wait(time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called.Load() {
		t.Error("expected cleanup to be called")
	}
}

// TestShutdownOnSignal verifies SIGTERM starts shutdown.
func TestShutdownOnSignal(t *testing.T) {
	mgr := shutdown.NewManager(context.Background())
	mgr.HandleSignals()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("send signal: %v", err)
	}

	select {
	case <-mgr.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected SIGTERM to cancel the context")
	}
	if !mgr.IsShutdown() {
		t.Error("expected IsShutdown after signal")
	}
	_ = mgr.Cleanup(time.Second)
}

// TestShutdownParentCancel verifies cancelling the parent context ends Wait.
func TestShutdownParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	mgr := shutdown.NewManager(parent)

	var called atomic.Bool
	mgr.RegisterCleanup("stop", func(context.Context) error {
		called.Store(true)
		return nil
	})
	cancel()

	if err := mgr.Wait(time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called.Load() {
		t.Error("expected cleanup after parent cancel")
	}
}

// TestShutdownOrder verifies cleanups run last-registered first.
func TestShutdownOrder(t *testing.T) {
	mgr := shutdown.NewManager(context.Background())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"server", "scheduler", "database"} {
		mgr.RegisterCleanup(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	if err := mgr.Cleanup(time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "database,scheduler,server"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("expected order %s, got %s", want, got)
	}
}

// TestShutdownJoinsErrors verifies failing cleanups do not stop later ones.
func TestShutdownJoinsErrors(t *testing.T) {
	mgr := shutdown.NewManager(context.Background())
	boom := errors.New("boom")

	var called atomic.Bool
	mgr.RegisterCleanup("first", func(context.Context) error {
		called.Store(true)
		return nil
	})
	mgr.RegisterCleanup("second", func(context.Context) error { return boom })

	err := mgr.Cleanup(time.Second)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined boom error, got %v", err)
	}
	if !strings.Contains(err.Error(), "second") {
		t.Errorf("expected cleanup name in error, got %v", err)
	}
	if !called.Load() {
		t.Error("expected earlier cleanup to still run")
	}
}

// TestShutdownTimeout verifies a slow cleanup is abandoned after the timeout.
func TestShutdownTimeout(t *testing.T) {
	mgr := shutdown.NewManager(context.Background())
	mgr.RegisterCleanup("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	start := time.Now()
	err := mgr.Cleanup(50 * time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("expected Cleanup to return promptly on timeout")
	}
}

// TestShutdownCleanupsRunOnce verifies a second Cleanup has nothing to run.
func TestShutdownCleanupsRunOnce(t *testing.T) {
	mgr := shutdown.NewManager(context.Background())
	var calls atomic.Int32
	mgr.RegisterCleanup("once", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	_ = mgr.Cleanup(time.Second)
	_ = mgr.Cleanup(time.Second)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

// TestShutdownConcurrentSafety verifies Shutdown is safe from many goroutines.
func TestShutdownConcurrentSafety(t *testing.T) {
	mgr := shutdown.NewManager(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Shutdown()
		}()
	}
	wg.Wait()

	if !mgr.IsShutdown() {
		t.Error("expected shutdown to be set")
	}
	select {
	case <-mgr.Context().Done():
	default:
		t.Error("expected context to be cancelled")
	}
}
