package kbd

// QueueCapacity is the number of scancodes that the keyboard queue can hold.
const QueueCapacity = 256

// queue is a fixed-size circular buffer of scancodes. The interrupt handler
// writes at head and the driver thread reads at tail; both sides access it
// with interrupts disabled.
type queue struct {
	buf   [QueueCapacity]uint8
	head  int
	tail  int
	count int
}

// push appends b to the queue. It returns false if the queue is full.
func (q *queue) push(b uint8) bool {
	if q.count == QueueCapacity {
		return false
	}

	q.buf[q.head] = b
	q.head = (q.head + 1) % QueueCapacity
	q.count++
	return true
}

// pop removes the oldest scancode from the queue.
func (q *queue) pop() (uint8, bool) {
	if q.count == 0 {
		return 0, false
	}

	b := q.buf[q.tail]
	q.tail = (q.tail + 1) % QueueCapacity
	q.count--
	return b, true
}
