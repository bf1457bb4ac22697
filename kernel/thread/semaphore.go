package thread

import "antiglory/kernel/irq"

// Semaphore is a counting semaphore. A negative count means that -count
// threads are blocked waiting on it.
type Semaphore struct {
	count   int
	waiters *WaitQueue
}

// NewSemaphore returns a semaphore with the supplied initial count.
func (s *Scheduler) NewSemaphore(initial int) *Semaphore {
	return &Semaphore{count: initial, waiters: s.NewWaitQueue()}
}

// Wait decrements the semaphore count and blocks the calling thread if the
// count becomes negative.
func (sem *Semaphore) Wait() {
	state := irq.Disable()
	sem.count--
	if sem.count < 0 {
		sem.waiters.Sleep()
	}
	irq.Restore(state)
}

// TryWait decrements the semaphore count if doing so would not block and
// reports whether it did.
func (sem *Semaphore) TryWait() bool {
	state := irq.Disable()
	defer irq.Restore(state)

	if sem.count <= 0 {
		return false
	}

	sem.count--
	return true
}

// Post increments the semaphore count and wakes one waiting thread if there
// is one. Post never blocks.
func (sem *Semaphore) Post() {
	state := irq.Disable()
	sem.count++
	if sem.count <= 0 {
		sem.waiters.WakeOne()
	}
	irq.Restore(state)
}

// Count returns the current semaphore count.
func (sem *Semaphore) Count() int {
	return sem.count
}

// Waiters returns the number of threads blocked on the semaphore.
func (sem *Semaphore) Waiters() int {
	return sem.waiters.Len()
}
