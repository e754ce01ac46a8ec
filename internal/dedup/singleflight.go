package dedup

import (
	"context"
	"sync"
	"time"
)

// Singleflight coalesces concurrent extractions of the same URL.
// The first caller runs the work; later callers for the same key wait for it
// and receive the same result.
type Singleflight struct {
	mu    sync.Mutex
	calls map[string]*call

	maxAge time.Duration
	stop   chan struct{}
	once   sync.Once
}

type call struct {
	done    chan struct{}
	val     interface{}
	err     error
	waiters int

	deadline time.Time
}

// Result represents the result of a Do call
type Result struct {
	Val    interface{}
	Err    error
	Shared bool // whether the result came from another caller's run
}

// NewSingleflight creates a new Singleflight. Entries older than maxAge are
// swept in case a call never returns.
func NewSingleflight(maxAge time.Duration) *Singleflight {
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	sf := &Singleflight{
		calls:  make(map[string]*call),
		maxAge: maxAge,
		stop:   make(chan struct{}),
	}
	go sf.sweep()
	return sf
}

// Do runs fn once per in-flight key. A caller whose ctx ends stops waiting
// but the work keeps running for the other waiters.
func (sf *Singleflight) Do(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}

	sf.mu.Lock()
	if c, ok := sf.calls[key]; ok {
		c.waiters++
		sf.mu.Unlock()

		select {
		case <-c.done:
			return Result{Val: c.val, Err: c.err, Shared: true}
		case <-ctx.Done():
			return Result{Err: ctx.Err(), Shared: true}
		}
	}

	c := &call{
		done:     make(chan struct{}),
		deadline: time.Now().Add(sf.maxAge),
	}
	sf.calls[key] = c
	sf.mu.Unlock()

	// detached so a disconnecting leader does not fail its followers
	workCtx := context.WithoutCancel(ctx)
	go func() {
		c.val, c.err = fn(workCtx)

		sf.mu.Lock()
		if sf.calls[key] == c {
			delete(sf.calls, key)
		}
		sf.mu.Unlock()
		close(c.done)
	}()

	select {
	case <-c.done:
		return Result{Val: c.val, Err: c.err}
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// Forget drops a key so the next caller starts a fresh run
func (sf *Singleflight) Forget(key string) {
	sf.mu.Lock()
	delete(sf.calls, key)
	sf.mu.Unlock()
}

// InFlight returns the number of keys currently running
func (sf *Singleflight) InFlight() int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return len(sf.calls)
}

// Stats returns statistics about in-flight calls
func (sf *Singleflight) Stats() map[string]interface{} {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	waiting := 0
	for _, c := range sf.calls {
		waiting += c.waiters
	}
	return map[string]interface{}{
		"in_flight_calls": len(sf.calls),
		"waiting_callers": waiting,
	}
}

// Close stops the sweeper
func (sf *Singleflight) Close() {
	sf.once.Do(func() { close(sf.stop) })
}

func (sf *Singleflight) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sf.stop:
			return
		case now := <-ticker.C:
			sf.mu.Lock()
			for key, c := range sf.calls {
				if now.After(c.deadline) {
					delete(sf.calls, key)
				}
			}
			sf.mu.Unlock()
		}
	}
}
