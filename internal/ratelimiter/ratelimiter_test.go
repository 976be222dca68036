package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestAcquire_EnforcesMinimumSpacing(t *testing.T) {
	m := New(map[string]time.Duration{
		"debrid": 50 * time.Millisecond,
	})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := m.Acquire(ctx, "debrid"); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 100*time.Millisecond {
		t.Errorf("expected at least 100ms across 3 spaced acquires, got %v", elapsed)
	}
}

func TestAcquire_NoLimiterConfiguredReturnsImmediately(t *testing.T) {
	m := New(map[string]time.Duration{})
	ctx := context.Background()

	start := time.Now()
	if err := m.Acquire(ctx, "library"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("expected immediate return, took %v", elapsed)
	}
}

func TestAcquire_ContextCanceled(t *testing.T) {
	m := New(map[string]time.Duration{
		"debrid": time.Hour,
	})
	ctx := context.Background()
	if err := m.Acquire(ctx, "debrid"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Acquire(cancelCtx, "debrid"); err == nil {
		t.Errorf("expected context cancellation error")
	}
}
