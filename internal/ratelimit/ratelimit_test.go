package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiterFixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := New(NewMemoryStore(WithMemoryClock(clock)))

	ctx := context.Background()
	for i := 1; i <= DefaultLimit; i++ {
		ok, err := limiter.Allow(ctx, "user@example.test")
		if err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		if !ok {
			t.Fatalf("attempt %d within limit was rejected", i)
		}
	}

	ok, err := limiter.Allow(ctx, "user@example.test")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("attempt past the limit was allowed")
	}

	// Rejected attempts do not extend the window.
	now = now.Add(DefaultWindow + time.Second)
	ok, err = limiter.Allow(ctx, "user@example.test")
	if err != nil {
		t.Fatalf("Allow after window: %v", err)
	}
	if !ok {
		t.Fatal("expected a fresh window after expiry")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := New(NewMemoryStore(), WithLimit(1), WithWindow(time.Minute))

	ctx := context.Background()
	if ok, _ := limiter.Allow(ctx, "a@example.test"); !ok {
		t.Fatal("first attempt for a must pass")
	}
	if ok, _ := limiter.Allow(ctx, "a@example.test"); ok {
		t.Fatal("second attempt for a must fail")
	}
	if ok, _ := limiter.Allow(ctx, "b@example.test"); !ok {
		t.Fatal("b must be unaffected by a's counter")
	}
}

func TestLimiterOptions(t *testing.T) {
	limiter := New(NewMemoryStore(), WithLimit(2), WithWindow(time.Minute), WithKeyPrefix("otp:"))
	if limiter.limit != 2 || limiter.window != time.Minute || limiter.prefix != "otp:" {
		t.Fatalf("options not applied: %+v", limiter)
	}

	// Zero and negative values keep the defaults.
	limiter = New(NewMemoryStore(), WithLimit(0), WithWindow(-time.Second))
	if limiter.limit != DefaultLimit || limiter.window != DefaultWindow {
		t.Fatalf("invalid options must be ignored: %+v", limiter)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewMemoryStore(WithMemoryClock(clock))

	ctx := context.Background()
	if _, err := store.Incr(ctx, "k1", time.Minute); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if _, err := store.Incr(ctx, "k2", time.Hour); err != nil {
		t.Fatalf("Incr: %v", err)
	}

	now = now.Add(2 * time.Minute)
	store.Sweep()

	if len(store.entries) != 1 {
		t.Fatalf("expected one surviving entry, got %d", len(store.entries))
	}
	if _, ok := store.entries["k2"]; !ok {
		t.Fatal("unexpired entry was swept")
	}
}

func TestMemoryStoreContextCancellation(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Incr(ctx, "k", time.Minute); err == nil {
		t.Fatal("expected context error")
	}
}
