// Package lock provides the short-lived mutual exclusion used to serialize
// concurrent webhook processing for the same payment.
package lock

import (
	"context"
	"sync"
	"time"
)

// Locker acquires a scoped lock. The returned function releases it. Lock
// blocks until the lock is acquired or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Memory is an in-process Locker suitable for single-node deployments and
// tests.
type Memory struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewMemory creates an in-process locker.
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]chan struct{})}
}

// Lock acquires the named lock, waiting for the current holder if needed.
func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	for {
		m.mu.Lock()
		ch, held := m.locks[key]
		if !held {
			released := make(chan struct{})
			m.locks[key] = released
			m.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					m.mu.Lock()
					delete(m.locks, key)
					m.mu.Unlock()
					close(released)
				})
			}, nil
		}
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
