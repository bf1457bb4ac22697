package thread

import "antiglory/kernel/irq"

// WaitQueue holds the threads blocked waiting for an event. Threads are
// woken in the order they went to sleep.
//
// WakeOne and WakeAll never block or allocate and may be invoked from
// interrupt handlers.
type WaitQueue struct {
	sched      *Scheduler
	head, tail int
	len        int
}

// NewWaitQueue returns an empty wait queue whose members are scheduled by s.
func (s *Scheduler) NewWaitQueue() *WaitQueue {
	return &WaitQueue{sched: s, head: noSlot, tail: noSlot}
}

// Len returns the number of threads blocked on the queue.
func (wq *WaitQueue) Len() int {
	return wq.len
}

// Sleep blocks the calling thread on the queue until another thread or an
// interrupt handler wakes it up.
func (wq *WaitQueue) Sleep() {
	s := wq.sched
	state := irq.Disable()

	slot := s.current
	if slot == noSlot {
		panicFn(errNoCurrentThread)
		irq.Restore(state)
		return
	}

	s.table[slot].state = Blocked
	s.rq.remove(slot)
	wq.push(slot)

	s.schedule()
	irq.Restore(state)
}

// WakeOne moves the longest sleeping thread back to the run queue. It returns
// false if the queue is empty.
func (wq *WaitQueue) WakeOne() bool {
	state := irq.Disable()
	defer irq.Restore(state)

	if wq.len == 0 {
		return false
	}

	wq.wake(wq.pop())
	return true
}

// WakeAll moves every thread blocked on the queue back to the run queue and
// returns the number of woken threads.
func (wq *WaitQueue) WakeAll() int {
	state := irq.Disable()
	defer irq.Restore(state)

	count := wq.len
	for wq.len != 0 {
		wq.wake(wq.pop())
	}

	return count
}

func (wq *WaitQueue) wake(slot int) {
	wq.sched.table[slot].state = Runnable
	wq.sched.rq.push(slot)
}

func (wq *WaitQueue) push(slot int) {
	table := &wq.sched.table
	table[slot].next = noSlot

	if wq.len == 0 {
		wq.head = slot
	} else {
		table[wq.tail].next = slot
	}
	wq.tail = slot
	wq.len++
}

func (wq *WaitQueue) pop() int {
	table := &wq.sched.table

	slot := wq.head
	wq.head = table[slot].next
	table[slot].next = noSlot

	wq.len--
	if wq.len == 0 {
		wq.head, wq.tail = noSlot, noSlot
	}

	return slot
}

// contains returns true if slot is blocked on the queue.
func (wq *WaitQueue) contains(slot int) bool {
	for it := wq.head; it != noSlot; it = wq.sched.table[it].next {
		if it == slot {
			return true
		}
	}

	return false
}
