// Package clock keeps the kernel's notion of time. It counts the interrupts
// raised by the periodic interval timer and lets threads sleep for a number
// of milliseconds.
package clock

import (
	"antiglory/kernel/irq"
	"antiglory/kernel/thread"
)

// TickRate is the number of timer interrupts per second.
const TickRate = 100

// Clock counts timer ticks. Threads blocked in Delay are parked on a wait
// queue that the timer handler drains on every tick.
type Clock struct {
	ticks    uint64
	sleepers *thread.WaitQueue
}

// New returns a clock whose sleeping threads are scheduled by s.
func New(s *thread.Scheduler) *Clock {
	return &Clock{sleepers: s.NewWaitQueue()}
}

// Init installs the timer interrupt handler.
func (c *Clock) Init() {
	irq.HandleLine(irq.Timer, c.tick)
}

func (c *Clock) tick(line irq.Line) {
	c.ticks++
	if c.sleepers.Len() != 0 {
		c.sleepers.WakeAll()
	}
	irq.Acknowledge(line)
}

// Ticks returns the number of timer interrupts serviced since Init.
func (c *Clock) Ticks() uint64 {
	state := irq.Disable()
	defer irq.Restore(state)

	return c.ticks
}

// Delay blocks the calling thread for at least ms milliseconds, rounded down
// to the resolution of the timer. Delays shorter than one tick return
// immediately.
func (c *Clock) Delay(ms uint32) {
	state := irq.Disable()
	deadline := c.ticks + uint64(ms)*TickRate/1000
	for c.ticks < deadline {
		c.sleepers.Sleep()
	}
	irq.Restore(state)
}

// Sleepers returns the number of threads blocked in Delay.
func (c *Clock) Sleepers() int {
	return c.sleepers.Len()
}
