package invoke

import (
	"context"
	"sync"
	"time"
)

const (
	rateWindow       = 60 * time.Second
	rateSafetyMargin = 50 * time.Millisecond
)

// RateLimiter allows at most maxPerMinute acquisitions in any rolling
// 60 second window.
type RateLimiter struct {
	max   int
	clock Clock

	mu       sync.Mutex
	calls    []time.Time
	acquired int
}

func NewRateLimiter(maxPerMinute int, clock Clock) *RateLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = 6
	}
	if clock == nil {
		clock = RealClock()
	}
	return &RateLimiter{max: maxPerMinute, clock: clock}
}

// Acquire blocks until one more call may start, then records it.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.clock.Now()
		l.pruneLocked(now)
		if len(l.calls) < l.max {
			l.calls = append(l.calls, l.clock.Now())
			l.acquired++
			return nil
		}

		wait := l.calls[0].Add(rateWindow).Sub(now) + rateSafetyMargin
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// Acquired is the total number of successful Acquire calls.
func (l *RateLimiter) Acquired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}
