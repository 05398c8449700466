// Package ratelimit provides a fixed-interval request gate. One limiter is
// shared by the lookup client and the fetcher so all outbound requests draw
// from the same global pace.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
}

func New(requestsPerSecond int) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Limiter{interval: time.Second / time.Duration(requestsPerSecond)}
}

// Wait blocks until the caller's turn comes up or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	scheduled := now
	if l.nextAllowedAt.After(now) {
		scheduled = l.nextAllowedAt
	}
	l.nextAllowedAt = scheduled.Add(l.interval)
	l.mu.Unlock()

	sleep := time.Until(scheduled)
	if sleep <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
