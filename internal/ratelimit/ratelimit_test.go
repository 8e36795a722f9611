package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("203.0.113.7") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		name string
		rl   *KeyedRateLimiter
		want time.Duration
	}{
		{name: "one per minute", rl: NewPerInterval(1, time.Minute, 1), want: time.Minute},
		{name: "thirty per minute", rl: NewPerInterval(30, time.Minute, 5), want: 2 * time.Second},
		{name: "four per second", rl: New(4, 1), want: 250 * time.Millisecond},
		{name: "never refills", rl: New(0, 1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer tt.rl.Stop()
			if got := tt.rl.RetryAfter(); got != tt.want {
				t.Errorf("RetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	rl.Allow("drive.usercontent.google.com")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "drive.usercontent.google.com"); err == nil {
		t.Error("Wait() should fail when context is done before a token is available")
	}
}

func TestKeyedRateLimiter_IndependentHosts(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	rl.Allow("cgas.io")
	if rl.Allow("cgas.io") {
		t.Error("cgas.io should be exhausted")
	}

	if !rl.Allow("www.dropbox.com") {
		t.Error("www.dropbox.com should be independent and allowed")
	}
}

func TestKeyedRateLimiter_EvictIdle(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(defaultIdleTTL + time.Second)
	rl.Allow("fresh")

	rl.evictIdle()

	if got := rl.Len(); got != 1 {
		t.Fatalf("Len() = %d after eviction, want 1", got)
	}
	// An evicted key starts over with a full bucket.
	if !rl.Allow("old") {
		t.Error("evicted key should get a fresh bucket")
	}
}

func TestNewPerInterval(t *testing.T) {
	rl := NewPerInterval(60, time.Minute, 2)
	defer rl.Stop()

	if rl.limit != 1 {
		t.Errorf("limit = %v, want 1 rps", rl.limit)
	}
}
