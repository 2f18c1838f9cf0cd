package upstream

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall-clock access so tests can drive the limiter
// deterministically.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock is the production Clock. Sleep returns early with the
// context's error if it is canceled first.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewClock returns the real wall clock.
func NewClock() Clock { return realClock{} }

// RateLimiter enforces a minimum wall-clock interval between any two
// outbound requests, process-wide. All tasks that talk to the upstream
// share one instance; access to the last-request time is serialized so
// overlapping callers still respect the gap.
type RateLimiter struct {
	clock    Clock
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewRateLimiter creates a limiter with the given minimum interval.
func NewRateLimiter(interval time.Duration, clock Clock) *RateLimiter {
	if clock == nil {
		clock = NewClock()
	}
	return &RateLimiter{clock: clock, interval: interval}
}

// Wait blocks until the next request is eligible, then records it.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clock.Now()
		eligible := l.last.Add(l.interval)
		if l.last.IsZero() || !now.Before(eligible) {
			l.last = now
			l.mu.Unlock()
			return nil
		}
		wait := eligible.Sub(now)
		l.mu.Unlock()

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
