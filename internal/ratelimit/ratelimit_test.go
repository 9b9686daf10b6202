package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		requests int
		allowed  int
	}{
		{name: "within burst", rps: 1, burst: 5, requests: 3, allowed: 3},
		{name: "exactly burst", rps: 1, burst: 5, requests: 5, allowed: 5},
		{name: "over burst", rps: 1, burst: 5, requests: 8, allowed: 5},
		{name: "burst of one", rps: 1, burst: 1, requests: 4, allowed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)

			allowed := 0
			for range tt.requests {
				if rl.Allow("client") {
					allowed++
				}
			}
			if allowed != tt.allowed {
				t.Errorf("allowed %d of %d requests, want %d", allowed, tt.requests, tt.allowed)
			}
		})
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)

	rl.Allow("10.0.0.1")
	if rl.Allow("10.0.0.1") {
		t.Error("10.0.0.1 should be exhausted")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("10.0.0.2 should be independent and allowed")
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestKeyedRateLimiter_NewPerInterval(t *testing.T) {
	rl := NewPerInterval(60, time.Minute, 2)

	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatal("burst of 2 should allow two immediate requests")
	}
	if rl.Allow("k") {
		t.Error("third immediate request should be rejected")
	}
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1)
	rl.Allow("k")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "k"); err == nil {
		t.Error("Wait() should fail when the context expires first")
	}
}

func TestKeyedRateLimiter_ConcurrentKeys(t *testing.T) {
	rl := New(100, 10)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			rl.Allow("shared")
		})
	}
	wg.Wait()

	if rl.Len() != 1 {
		t.Errorf("Len() = %d, want a single limiter for the shared key", rl.Len())
	}
}

func TestPacer_FirstWaitImmediate(t *testing.T) {
	p := NewPacer(time.Hour)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("first Wait() should be immediate")
	}
}

func TestPacer_SpacesOperations(t *testing.T) {
	p := NewPacer(100 * time.Millisecond)
	ctx := context.Background()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("second Wait() failed: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 80*time.Millisecond || elapsed > 300*time.Millisecond {
		t.Errorf("second Wait() took %v, want ~100ms", elapsed)
	}
}

func TestPacer_ZeroIntervalNeverWaits(t *testing.T) {
	p := NewPacer(0)

	start := time.Now()
	for range 20 {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() failed: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("zero interval should never wait")
	}
	if p.Interval() != 0 {
		t.Errorf("Interval() = %v, want 0", p.Interval())
	}
}

func TestPacer_WaitCancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	_ = p.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err == nil {
		t.Error("Wait() should fail on a cancelled context")
	}
}
