// Package irq models the interrupt flag of the single CPU core together with
// the interrupt request lines wired to it.
//
// Devices raise interrupts asynchronously by calling Raise from any
// goroutine. A raised interrupt stays pending until the CPU accepts
// interrupts again, either because the interrupt flag gets re-enabled
// (Enable or Restore) or because the CPU halts waiting for one (Wait). The
// handler then runs on the code path that unmasked interrupts, with
// interrupts disabled, so a masked critical section is never interleaved
// with a handler.
//
// With the exception of Raise, the functions in this package must only be
// called by the thread that currently owns the CPU.
package irq

import "sync/atomic"

// Line identifies an interrupt request line of the interrupt controller.
type Line uint8

const (
	// Timer is the line wired to the periodic interval timer.
	Timer = Line(0)

	// Keyboard is the line wired to the keyboard controller.
	Keyboard = Line(1)

	// PowerButton is the line signaled when the machine is asked to power
	// off.
	PowerButton = Line(2)

	// NumLines defines the number of lines supported by the controller.
	NumLines = 16
)

// Handler is a function that services an interrupt raised on a particular
// line. Handlers run with interrupts disabled and must never block.
type Handler func(Line)

// State captures the value of the interrupt flag as returned by Disable.
type State bool

var (
	// enabled mirrors the CPU interrupt flag. The CPU powers up with
	// interrupts disabled.
	enabled bool

	// dispatching is set while handlers are being invoked.
	dispatching bool

	handlers [NumLines]Handler

	// pending counts the raised but not yet serviced interrupts per line.
	pending [NumLines]atomic.Uint32

	// spurious counts interrupts raised on lines without a handler.
	spurious atomic.Uint64

	// wakeCh is signaled by Raise to wake up a CPU blocked in Wait.
	wakeCh = make(chan struct{}, 1)

	// acknowledgeFn sends an end-of-interrupt to the controller. It is
	// replaced by the boot collaborator and mocked by tests.
	acknowledgeFn = func(Line) {}
)

// Init restores the controller to its power-on state: interrupts disabled,
// no handlers installed and no pending requests.
func Init() {
	enabled = false
	dispatching = false
	for line := range handlers {
		handlers[line] = nil
		pending[line].Store(0)
	}
	spurious.Store(0)

	select {
	case <-wakeCh:
	default:
	}
}

// HandleLine registers handler as the service routine for line. Passing a
// nil handler masks the line.
func HandleLine(line Line, handler Handler) {
	if line >= NumLines {
		return
	}

	handlers[line] = handler
}

// SetAcknowledgeHook installs the function used to signal end-of-interrupt
// to the interrupt controller. Passing a nil hook has no effect.
func SetAcknowledgeHook(fn func(Line)) {
	if fn == nil {
		return
	}

	acknowledgeFn = fn
}

// Acknowledge signals the interrupt controller that the interrupt raised on
// line has been serviced.
func Acknowledge(line Line) {
	acknowledgeFn(line)
}

// Raise flags an interrupt request on line. Raise is the only function in
// this package that is safe to call from any goroutine.
func Raise(line Line) {
	if line >= NumLines {
		return
	}

	pending[line].Add(1)

	select {
	case wakeCh <- struct{}{}:
	default:
	}
}

// Pending returns the number of raised but not yet serviced interrupts on
// line.
func Pending(line Line) uint32 {
	if line >= NumLines {
		return 0
	}

	return pending[line].Load()
}

// Spurious returns the number of serviced interrupts that arrived on a line
// without a handler.
func Spurious() uint64 {
	return spurious.Load()
}

// Enabled returns true if the CPU currently accepts interrupts.
func Enabled() bool {
	return enabled
}

// Disable masks interrupt delivery and returns the previous state of the
// interrupt flag so that it can be passed to Restore.
func Disable() State {
	prev := State(enabled)
	enabled = false
	return prev
}

// Restore sets the interrupt flag to the value captured by an earlier call to
// Disable. Any interrupts that became pending while masked are serviced
// before Restore returns.
func Restore(state State) {
	if state {
		Enable()
	}
}

// Enable unmasks interrupt delivery and services any pending interrupts.
func Enable() {
	enabled = true
	dispatch()
}

// Wait enables interrupts and halts the CPU until at least one interrupt has
// been serviced.
func Wait() {
	enabled = true
	for !anyPending() {
		<-wakeCh
	}
	dispatch()
}

// dispatch services pending interrupts in line priority order (lower line
// numbers first) for as long as interrupts remain enabled.
func dispatch() {
	if dispatching {
		return
	}

	dispatching = true
	for enabled {
		line, ok := nextPending()
		if !ok {
			break
		}

		enabled = false
		if handler := handlers[line]; handler != nil {
			handler(line)
		} else {
			spurious.Add(1)
			acknowledgeFn(line)
		}
		enabled = true
	}
	dispatching = false
}

// nextPending claims one pending request and returns its line.
func nextPending() (Line, bool) {
	for line := range pending {
		for {
			count := pending[line].Load()
			if count == 0 {
				break
			}

			if pending[line].CompareAndSwap(count, count-1) {
				return Line(line), true
			}
		}
	}

	return 0, false
}

func anyPending() bool {
	for line := range pending {
		if pending[line].Load() != 0 {
			return true
		}
	}

	return false
}
