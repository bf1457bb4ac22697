// Package kbd implements the keyboard driver. The keyboard interrupt handler
// latches scancodes into a queue which is drained by a dedicated driver
// thread that decodes them and forwards the resulting characters to a
// consumer such as the line discipline.
package kbd

import (
	"io"

	"antiglory/kernel"
	"antiglory/kernel/irq"
	"antiglory/kernel/kfmt"
	"antiglory/kernel/thread"
)

var errNoPort = &kernel.Error{Module: "ps2_kbd", Message: "no data port"}

// Consumer receives the characters decoded by the driver.
type Consumer interface {
	Input(ch byte)
}

// Driver couples the keyboard interrupt handler with the thread that
// processes its input.
type Driver struct {
	port     Port
	consumer Consumer

	queue   queue
	waitq   *thread.WaitQueue
	dropped uint64
}

// New returns a driver that reads scancodes from port and forwards decoded
// characters to consumer. The driver thread is scheduled by s.
func New(s *thread.Scheduler, port Port, consumer Consumer) *Driver {
	return &Driver{
		port:     port,
		consumer: consumer,
		waitq:    s.NewWaitQueue(),
	}
}

// DriverName returns the name of this driver.
func (*Driver) DriverName() string {
	return "ps2_kbd"
}

// DriverVersion returns the version of this driver.
func (*Driver) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit installs the keyboard interrupt handler.
func (d *Driver) DriverInit(w io.Writer) *kernel.Error {
	if d.port == nil {
		return errNoPort
	}

	irq.HandleLine(irq.Keyboard, d.interrupt)
	kfmt.Fprintf(w, "listening on irq %d, queue capacity %d\n", uint8(irq.Keyboard), QueueCapacity)
	return nil
}

// interrupt services the keyboard line. Bytes that arrive while the queue is
// full are discarded. Interrupts raised while the controller has no data
// are acknowledged without touching the queue.
func (d *Driver) interrupt(line irq.Line) {
	if d.port.ReadStatus()&StatusOutputFull == 0 {
		irq.Acknowledge(line)
		return
	}

	if d.queue.push(d.port.ReadData()) {
		d.waitq.WakeOne()
	} else {
		d.dropped++
	}

	irq.Acknowledge(line)
}

// Run is the entry point of the driver thread. It never returns.
func (d *Driver) Run(_ interface{}) {
	for {
		state := irq.Disable()
		scancode, ok := d.queue.pop()
		if !ok {
			// The empty check and the sleep share one masked section
			// so a scancode queued in between cannot be missed.
			d.waitq.Sleep()
			irq.Restore(state)
			continue
		}
		irq.Restore(state)

		if ch, ok := Decode(scancode); ok {
			d.consumer.Input(ch)
		}
	}
}

// Len returns the number of queued scancodes.
func (d *Driver) Len() int {
	state := irq.Disable()
	defer irq.Restore(state)

	return d.queue.count
}

// Dropped returns the number of scancodes discarded because the queue was
// full.
func (d *Driver) Dropped() uint64 {
	state := irq.Disable()
	defer irq.Restore(state)

	return d.dropped
}
