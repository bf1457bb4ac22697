package thread

// runQueue is a circular singly-linked list of the threads eligible to run.
// Links are slot indices into the thread table. New threads are appended
// after the tail so that the rotation order matches the insertion order.
type runQueue struct {
	table      *[MaxThreads]tcb
	head, tail int
	len        int
}

func (rq *runQueue) init(table *[MaxThreads]tcb) {
	rq.table = table
	rq.head, rq.tail, rq.len = noSlot, noSlot, 0
}

func (rq *runQueue) empty() bool {
	return rq.len == 0
}

// push appends slot to the tail of the queue.
func (rq *runQueue) push(slot int) {
	if rq.len == 0 {
		rq.head, rq.tail = slot, slot
		rq.table[slot].next = slot
	} else {
		rq.table[slot].next = rq.head
		rq.table[rq.tail].next = slot
		rq.tail = slot
	}
	rq.len++
}

// rotate advances the queue head to its successor and returns it.
func (rq *runQueue) rotate() int {
	rq.tail = rq.head
	rq.head = rq.table[rq.head].next
	return rq.head
}

// remove unlinks slot from the queue. It returns false if slot is not a
// member of the queue.
func (rq *runQueue) remove(slot int) bool {
	prev, it := rq.tail, rq.head
	for i := 0; i < rq.len; i, prev, it = i+1, it, rq.table[it].next {
		if it != slot {
			continue
		}

		rq.len--
		switch {
		case rq.len == 0:
			rq.head, rq.tail = noSlot, noSlot
		default:
			rq.table[prev].next = rq.table[it].next
			if it == rq.head {
				rq.head = rq.table[it].next
			}
			if it == rq.tail {
				rq.tail = prev
			}
		}

		rq.table[slot].next = noSlot
		return true
	}

	return false
}

// contains returns true if slot is reachable by traversing the queue from
// its head.
func (rq *runQueue) contains(slot int) bool {
	it := rq.head
	for i := 0; i < rq.len; i, it = i+1, rq.table[it].next {
		if it == slot {
			return true
		}
	}

	return false
}

// visit invokes fn for each queued slot starting at the head.
func (rq *runQueue) visit(fn func(slot int)) {
	it := rq.head
	for i := 0; i < rq.len; i, it = i+1, rq.table[it].next {
		fn(it)
	}
}
