package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLockSerializes(t *testing.T) {
	locker := NewMemory()
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := locker.Lock(ctx, "pay_123")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected at most 1 concurrent holder, saw %d", maxActive)
	}
}

func TestMemoryLockDifferentKeysIndependent(t *testing.T) {
	locker := NewMemory()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "pay_a")
	if err != nil {
		t.Fatalf("Lock a: %v", err)
	}
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := locker.Lock(ctx, "pay_b")
		if err != nil {
			t.Errorf("Lock b: %v", err)
			return
		}
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on independent key blocked")
	}
}

func TestMemoryLockContextCancelled(t *testing.T) {
	locker := NewMemory()

	unlock, err := locker.Lock(context.Background(), "pay_123")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := locker.Lock(ctx, "pay_123"); err == nil {
		t.Fatal("expected context error while lock held")
	}
}

func TestMemoryUnlockIdempotent(t *testing.T) {
	locker := NewMemory()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "pay_123")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlock()
	unlock()

	unlock2, err := locker.Lock(ctx, "pay_123")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	unlock2()
}
