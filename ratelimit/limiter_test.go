package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowUnlimited(t *testing.T) {
	l := New()
	for i := 0; i < 100; i++ {
		if !l.Allow("profile_1", 0) {
			t.Fatal("unlimited profile should always be allowed")
		}
	}
}

func TestAllowExhaustsBucket(t *testing.T) {
	l := New()

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("profile_1", 2) {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("expected 2 allowed, got %d", allowed)
	}
}

func TestBucketsIndependent(t *testing.T) {
	l := New()

	for i := 0; i < 2; i++ {
		l.Allow("profile_1", 2)
	}
	if l.Allow("profile_1", 2) {
		t.Fatal("profile_1 bucket should be empty")
	}
	if !l.Allow("profile_2", 2) {
		t.Fatal("profile_2 bucket should be full")
	}
}

func TestWaitRefills(t *testing.T) {
	l := New()

	for i := 0; i < 20; i++ {
		l.Allow("profile_1", 20)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, "profile_1", 20); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Wait took too long for refill")
	}
}

func TestWaitContextCancelled(t *testing.T) {
	l := New()

	l.Allow("profile_1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx, "profile_1", 1); err == nil {
		t.Fatal("expected context error")
	}
}

func TestReset(t *testing.T) {
	l := New()

	l.Allow("profile_1", 1)
	if l.Allow("profile_1", 1) {
		t.Fatal("bucket should be empty")
	}

	l.Reset("profile_1")
	if !l.Allow("profile_1", 1) {
		t.Fatal("bucket should be full after reset")
	}
}
