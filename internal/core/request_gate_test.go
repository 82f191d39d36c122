package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRequestGate_AcquireRelease(t *testing.T) {
	gate := NewRequestGate(2, time.Second)
	ctx := context.Background()

	if got := gate.Available(); got != 2 {
		t.Errorf("initial Available = %d, want 2", got)
	}

	for i := 0; i < 2; i++ {
		if err := gate.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}
	if got := gate.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if got := gate.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	gate.Release()
	gate.Release()
	if got := gate.ActiveCount(); got != 0 {
		t.Errorf("after Release, ActiveCount = %d, want 0", got)
	}
}

func TestRequestGate_RejectsWhenFull(t *testing.T) {
	gate := NewRequestGate(1, 100*time.Millisecond)
	ctx := context.Background()

	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	start := time.Now()
	err := gate.Acquire(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("expected ErrTooManyRequests, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("gave up too early: %v", elapsed)
	}
}

func TestRequestGate_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	gate := NewRequestGate(maxConcurrent, time.Second)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		maxObserved int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer gate.Release()

			mu.Lock()
			if n := gate.ActiveCount(); n > maxObserved {
				maxObserved = n
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("observed %d concurrent requests, max %d", maxObserved, maxConcurrent)
	}
	if got := gate.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestRequestGate_ContextCancellation(t *testing.T) {
	gate := NewRequestGate(1, 5*time.Second)
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gate.Acquire(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after cancellation")
	}
}

func TestRequestGate_WaitForDrain(t *testing.T) {
	gate := NewRequestGate(2, time.Second)
	ctx := context.Background()
	_ = gate.Acquire(ctx)

	done := make(chan error, 1)
	go func() { done <- gate.WaitForDrain(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitForDrain returned with a request in flight")
	case <-time.After(50 * time.Millisecond):
	}

	gate.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForDrain error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not return after release")
	}
}

func TestRequestGate_StatusAndDefaults(t *testing.T) {
	gate := NewRequestGate(0, 0)
	status := gate.Status()
	if status.MaxConcurrent != DefaultMaxConcurrentRequests {
		t.Errorf("MaxConcurrent = %d, want %d", status.MaxConcurrent, DefaultMaxConcurrentRequests)
	}
	if status.Available != DefaultMaxConcurrentRequests || status.Active != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestRequestGate_NilAdmitsEverything(t *testing.T) {
	var gate *RequestGate
	if err := gate.Acquire(context.Background()); err != nil {
		t.Errorf("nil gate Acquire = %v", err)
	}
	gate.Release()
}
