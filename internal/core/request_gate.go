package core

// request_gate.go bounds how many preview and commit requests may be in
// flight against the analysis backend at once, across all workflows served
// by one process. When every slot is taken, callers wait up to maxWait and
// then fail with ErrTooManyRequests.
//
// WaitForDrain supports graceful shutdown by blocking until in-flight
// requests finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRequests is returned when no slot frees up within the wait time.
var ErrTooManyRequests = errors.New("too many imports in progress, please try again later")

// DefaultMaxConcurrentRequests is the default limit for parallel backend requests.
const DefaultMaxConcurrentRequests = 5

// DefaultGateWait is how long to wait for a slot before rejecting.
const DefaultGateWait = 30 * time.Second

// RequestGate is a semaphore over primary backend requests.
type RequestGate struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewRequestGate creates a gate allowing at most maxConcurrent requests.
func NewRequestGate(maxConcurrent int, maxWait time.Duration) *RequestGate {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRequests
	}
	if maxWait <= 0 {
		maxWait = DefaultGateWait
	}

	return &RequestGate{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must call Release when the request ends.
// A nil gate admits everything.
func (g *RequestGate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.slots <- struct{}{}:
		g.mu.Lock()
		g.active++
		g.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRequests
	}
}

// Release frees a slot taken by Acquire.
func (g *RequestGate) Release() {
	if g == nil {
		return
	}

	g.mu.Lock()
	g.active--
	g.mu.Unlock()

	<-g.slots
}

// ActiveCount returns the number of requests currently holding a slot.
func (g *RequestGate) ActiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active
}

// Available returns the number of free slots.
func (g *RequestGate) Available() int {
	return cap(g.slots) - len(g.slots)
}

// WaitForDrain blocks until no request holds a slot or ctx is done.
func (g *RequestGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if g.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RequestGateStatus is a snapshot of the gate for monitoring.
type RequestGateStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current gate state.
func (g *RequestGate) Status() RequestGateStatus {
	return RequestGateStatus{
		Active:        g.ActiveCount(),
		Available:     g.Available(),
		MaxConcurrent: cap(g.slots),
	}
}
