package ble

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitersQueued(l *fifoLock) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

func TestFIFOLockOrder(t *testing.T) {
	var l fifoLock
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	order := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		go func(n int) {
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			order <- n
			l.Release()
		}(i)
		waitFor(t, "waiter queued", func() bool { return waitersQueued(&l) == i })
	}

	l.Release()
	for want := 1; want <= 3; want++ {
		select {
		case got := <-order:
			if got != want {
				t.Errorf("acquired by waiter %d, want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("waiter never acquired the lock")
		}
	}
	waitFor(t, "lock released", func() bool { return !l.Held() })
}

func TestFIFOLockCancel(t *testing.T) {
	var l fifoLock
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
	if n := waitersQueued(&l); n != 0 {
		t.Errorf("canceled waiter left in queue: %d waiters", n)
	}

	l.Release()
	if l.Held() {
		t.Error("lock should be free after release")
	}
}

func TestFIFOLockReleaseUnheldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Release() of an unheld lock should panic")
		}
	}()
	var l fifoLock
	l.Release()
}
