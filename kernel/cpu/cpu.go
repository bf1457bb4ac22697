// Package cpu exposes the processor operations that the kernel core needs
// beyond interrupt masking (see package irq).
package cpu

import "runtime"

var (
	// haltFn is invoked by Halt. Boot collaborators that host the kernel
	// inside a process replace it via SetHaltHandler.
	haltFn = func() { select {} }

	// pauseFn is invoked by Pause and is mocked by tests.
	pauseFn = runtime.Gosched
)

// Halt stops instruction execution. Calls to Halt never return unless a halt
// handler installed by the boot collaborator decides otherwise.
func Halt() {
	haltFn()
}

// SetHaltHandler replaces the action performed by Halt. Passing a nil
// handler has no effect.
func SetHaltHandler(fn func()) {
	if fn == nil {
		return
	}

	haltFn = fn
}

// Pause hints the processor that the caller is busy-waiting inside a spin
// loop.
func Pause() {
	pauseFn()
}
