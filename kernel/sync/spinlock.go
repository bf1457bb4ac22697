// Package sync provides the spinlock used to guard kernel data structures
// that may one day be shared between CPU cores.
package sync

import (
	"sync/atomic"

	"antiglory/kernel/cpu"
)

// attemptsBeforeYielding defines how many times Acquire spins on a held lock
// before invoking yieldFn.
const attemptsBeforeYielding = 64

var (
	// yieldFn is invoked while waiting for a held lock. It is replaced by
	// tests that exercise contention from multiple goroutines.
	yieldFn = cpu.Pause
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempt := uint32(0); ; attempt++ {
		if atomic.LoadUint32(&l.state) == 0 && atomic.CompareAndSwapUint32(&l.state, 0, 1) {
			return
		}

		if attempt == attemptsBeforeYielding {
			attempt = 0
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// Held returns true if the lock is currently acquired.
func (l *Spinlock) Held() bool {
	return atomic.LoadUint32(&l.state) != 0
}
