package sync

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestSpinlock(t *testing.T) {
	// Substitute the yieldFn with runtime.Gosched to avoid deadlocks while testing
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		sl         Spinlock
		wg         sync.WaitGroup
		numWorkers = 10
		counter    int
	)

	sl.Acquire()

	if sl.TryToAcquire() != false {
		t.Error("expected TryToAcquire to return false when lock is held")
	}

	if !sl.Held() {
		t.Error("expected Held to return true while the lock is acquired")
	}

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			sl.Acquire()
			counter++
			sl.Release()
			wg.Done()
		}(i)
	}

	<-time.After(100 * time.Millisecond)
	if counter != 0 {
		t.Fatalf("expected workers to spin while the lock is held; counter is %d", counter)
	}
	sl.Release()
	wg.Wait()

	if counter != numWorkers {
		t.Fatalf("expected each worker to enter the critical section once; counter is %d", counter)
	}

	if sl.Held() {
		t.Fatal("expected lock to be free after all workers released it")
	}
}

func TestSpinlockTryToAcquire(t *testing.T) {
	var sl Spinlock

	if !sl.TryToAcquire() {
		t.Fatal("expected TryToAcquire to succeed on a free lock")
	}

	sl.Release()
	sl.Release()

	if !sl.TryToAcquire() {
		t.Fatal("expected a double Release to leave the lock free")
	}
}
