package kfmt

import (
	"antiglory/kernel"
	"antiglory/kernel/cpu"
	"antiglory/kernel/irq"
)

var (
	// cpuHaltFn is mocked by tests.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}

	// panicked is set once Panic starts halting the system.
	panicked bool
)

// Panicked returns true if the CPU was halted by Panic. Halt handlers use it
// to tell a kernel panic apart from an orderly halt.
func Panicked() bool {
	return panicked
}

// Panic masks interrupts, outputs the supplied error (if not nil) to the
// console and halts the CPU. Calls to Panic never return.
//
// Panic accepts a *kernel.Error, a Go error or a string so that it can also
// serve as the landing point for runtime panics recovered inside kernel
// threads.
func Panic(e interface{}) {
	var err *kernel.Error

	irq.Disable()
	panicked = true

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
