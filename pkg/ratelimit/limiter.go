// Package ratelimit bounds the request rate against the remote site.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates requests. Wait blocks until the next request may proceed or
// the context is cancelled.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Interval enforces a minimum spacing between consecutive requests. The
// first request passes immediately, so the delay never trails the final
// request of a run.
type Interval struct {
	delay time.Duration
	last  time.Time
	mu    sync.Mutex
}

// NewInterval creates a pacer with the given minimum spacing. A zero or
// negative delay disables pacing.
func NewInterval(delay time.Duration) *Interval {
	return &Interval{delay: delay}
}

// Wait blocks until the spacing from the previous request has elapsed.
func (i *Interval) Wait(ctx context.Context) error {
	if i.delay <= 0 {
		return nil
	}

	i.mu.Lock()
	var sleep time.Duration
	if !i.last.IsZero() {
		sleep = i.delay - time.Since(i.last)
	}
	i.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	i.mu.Lock()
	i.last = time.Now()
	i.mu.Unlock()
	return nil
}

// None is a pass-through limiter.
type None struct{}

// Wait never blocks.
func (None) Wait(context.Context) error { return nil }
