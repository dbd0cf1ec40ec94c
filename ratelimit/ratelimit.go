// Package ratelimit paces chat-completion calls: a rolling one-minute
// request budget plus a minimum spacing between consecutive calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultMaxPerMinute is the per-window request budget.
	DefaultMaxPerMinute = 10
	// DefaultMinInterval is the minimum spacing between calls.
	DefaultMinInterval = 6 * time.Second

	window = time.Minute
)

// Limiter blocks callers until the current window has capacity and the
// minimum interval since the previous call has elapsed. The window is
// counted from the first request after a reset; when it rolls over the
// count starts fresh.
type Limiter struct {
	mu           sync.Mutex
	maxPerMinute int
	minInterval  time.Duration

	windowStart time.Time
	count       int
	lastRequest time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Snapshot is the limiter state Stats reports.
type Snapshot struct {
	RequestsThisMinute   int           `json:"requests_this_minute"`
	MaxRequestsPerMinute int           `json:"max_requests_per_minute"`
	TimeSinceLastRequest time.Duration `json:"time_since_last_request"`
	RequestInterval      time.Duration `json:"request_interval"`
}

// New creates a limiter; non-positive arguments use the defaults.
func New(maxPerMinute int, minInterval time.Duration) *Limiter {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxPerMinute
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Limiter{
		maxPerMinute: maxPerMinute,
		minInterval:  minInterval,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Wait blocks until the caller may issue the next request, honoring
// context cancellation while blocked.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.now()

		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= window {
			l.windowStart = now
			l.count = 0
		}

		var wait time.Duration
		if !l.lastRequest.IsZero() {
			if spacing := l.minInterval - now.Sub(l.lastRequest); spacing > wait {
				wait = spacing
			}
		}
		if l.count >= l.maxPerMinute {
			if until := l.windowStart.Add(window).Sub(now); until > wait {
				wait = until
			}
		}

		if wait <= 0 {
			l.count++
			l.lastRequest = now
			return nil
		}

		l.mu.Unlock()
		err := l.sleep(ctx, wait)
		l.mu.Lock()
		if err != nil {
			return err
		}
	}
}

// Stats reports the current window usage.
func (l *Limiter) Stats() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	count := l.count
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= window {
		count = 0
	}

	s := Snapshot{
		RequestsThisMinute:   count,
		MaxRequestsPerMinute: l.maxPerMinute,
		RequestInterval:      l.minInterval,
	}
	if !l.lastRequest.IsZero() {
		s.TimeSinceLastRequest = now.Sub(l.lastRequest)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
