// Package ratelimit bounds the rate of outbound provider calls with a
// sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// epsilon is added to computed waits so the oldest call has left the
// window when the waiter wakes up.
const epsilon = 10 * time.Millisecond

// Acquirer is implemented by anything that can gate a call.
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Limiter allows at most max calls in any rolling window. The zero value
// and a nil *Limiter never block.
type Limiter struct {
	max    int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleep replaces the context aware timer used while waiting.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// New returns a Limiter allowing max calls per window. max <= 0 disables
// limiting.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until a call may proceed and records it. It returns
// ctx.Err() if the context ends first.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.max <= 0 || l.window <= 0 {
		return ctx.Err()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.calls) < l.max {
		l.calls = append(l.calls, now)
		return 0, true
	}

	return l.window - now.Sub(l.calls[0]) + epsilon, false
}

// prune drops calls that have left the window. Callers hold mu.
func (l *Limiter) prune(now time.Time) {
	i := 0
	for i < len(l.calls) && now.Sub(l.calls[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// InWindow reports how many calls are currently counted.
func (l *Limiter) InWindow() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.calls)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
