// Package ratelimiter provides a per-service minimum-call-spacing gate.
// Unlike a token bucket, it never lets a burst of calls through after an
// idle period: every Acquire is spaced at least the configured interval
// after the previous one.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/ratelimit"
)

// Manager holds one limiter per named service (e.g. "library", "debrid").
type Manager struct {
	mu       sync.Mutex
	limiters map[string]ratelimit.Limiter
	spacing  map[string]time.Duration
}

// New builds a Manager. spacing maps a service name to its minimum
// inter-call interval; a service not listed gets no limiter and Acquire
// returns immediately.
func New(spacing map[string]time.Duration) *Manager {
	return &Manager{
		limiters: make(map[string]ratelimit.Limiter),
		spacing:  spacing,
	}
}

func (m *Manager) limiterFor(service string) ratelimit.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rl, ok := m.limiters[service]; ok {
		return rl
	}
	interval, ok := m.spacing[service]
	if !ok || interval <= 0 {
		return nil
	}
	rl := ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack())
	m.limiters[service] = rl
	return rl
}

// Acquire blocks until the next call for service is allowed, or ctx is
// canceled first.
func (m *Manager) Acquire(ctx context.Context, service string) error {
	rl := m.limiterFor(service)
	if rl == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		rl.Take()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
