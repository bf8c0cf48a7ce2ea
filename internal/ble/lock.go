package ble

import (
	"context"
	"sync"
)

// fifoLock is a mutex that hands ownership to waiters in arrival order and
// lets a waiter give up when its context ends.
type fifoLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// Acquire blocks until the lock is held by the caller or ctx is done.
func (l *fifoLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}
	w := make(chan struct{}, 1)
	l.waiters = append(l.waiters, w)
	l.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	for i, q := range l.waiters {
		if q == w {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			l.mu.Unlock()
			return ctx.Err()
		}
	}
	l.mu.Unlock()

	// Ownership was handed to us while we were giving up; pass it on.
	<-w
	l.Release()
	return ctx.Err()
}

// Release hands the lock to the oldest waiter, or frees it.
func (l *fifoLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		panic("ble: release of unheld lock")
	}
	if len(l.waiters) == 0 {
		l.held = false
		return
	}
	w := l.waiters[0]
	l.waiters = l.waiters[1:]
	w <- struct{}{}
}

// Held reports whether the lock is currently owned.
func (l *fifoLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
