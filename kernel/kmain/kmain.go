// Package kmain brings up the kernel subsystems and starts the scheduler.
package kmain

import (
	"bytes"

	"antiglory/device"
	"antiglory/device/kbd"
	"antiglory/device/tty"
	"antiglory/device/video/console"
	"antiglory/kernel"
	"antiglory/kernel/clock"
	"antiglory/kernel/cpu"
	"antiglory/kernel/irq"
	"antiglory/kernel/kfmt"
	"antiglory/kernel/mem/arena"
	"antiglory/kernel/mem/slab"
	"antiglory/kernel/thread"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errNoConsole     = &kernel.Error{Module: "kmain", Message: "no console device"}
	errNoKeyboard    = &kernel.Error{Module: "kmain", Message: "no keyboard port"}

	// mocked by tests
	panicFn   = kfmt.Panic
	cpuHaltFn = cpu.Halt

	strBuf bytes.Buffer
)

// BootInfo describes the machine handed over to Kmain by the boot code.
type BootInfo struct {
	// HeapStart and HeapEnd delimit the memory region managed by the
	// kernel allocator.
	HeapStart, HeapEnd uintptr

	// Console is the display device used for kernel output.
	Console console.Device

	// KeyboardPort is the data port of the keyboard controller.
	KeyboardPort kbd.Port

	// Main is the entry point of the main kernel thread. If nil, the
	// built-in shell is started instead.
	Main thread.Entry
}

// System holds the kernel subsystems initialized by Kmain. It is passed as
// the argument of the main thread entry point.
type System struct {
	Arena     arena.Arena
	Allocator *slab.Allocator
	Scheduler *thread.Scheduler
	Clock     *clock.Clock
	Terminal  *tty.VT
	Input     *tty.LineDiscipline
	Keyboard  *kbd.Driver

	log kfmt.PrefixWriter
}

// Kmain is invoked by the boot code once the machine is ready to run Go
// code. Kmain initializes the kernel subsystems in dependency order, spawns
// the keyboard driver and main threads and hands the CPU to the scheduler.
//
// Any initialization failure triggers a kernel panic. Kmain is not expected
// to return.
func Kmain(info BootInfo) {
	sys := &System{log: kfmt.PrefixWriter{Prefix: []byte("[kmain] ")}}

	if err := sys.boot(info); err != nil {
		panicFn(err)
		return
	}

	sys.Scheduler.Start()

	panicFn(errKmainReturned)
}

func (sys *System) boot(info BootInfo) *kernel.Error {
	var err *kernel.Error

	irq.Init()

	if info.Console == nil {
		return errNoConsole
	}

	if info.KeyboardPort == nil {
		return errNoKeyboard
	}

	// Bring up the console first so that the remaining steps can log
	sys.Terminal = tty.NewVT(tty.DefaultTabWidth)
	if drv, ok := info.Console.(device.Driver); ok {
		if err = initDriver(drv); err != nil {
			return err
		}
	}
	sys.Terminal.AttachTo(info.Console)
	if err = initDriver(sys.Terminal); err != nil {
		return err
	}
	kfmt.SetOutputSink(sys.Terminal)
	sys.logf("system: tty0 OK\n")

	if err = sys.Arena.Init(info.HeapStart, info.HeapEnd); err != nil {
		return err
	}
	sys.logf("kmalloc: kbrk OK (heap 0x%x - 0x%x, %dKb)\n", info.HeapStart, info.HeapEnd, uint64(sys.Arena.Free()>>10))

	sys.Allocator = slab.New(&sys.Arena)
	sys.logf("kmalloc: slab OK\n")

	sys.Scheduler = thread.New(sys.Allocator)
	if err = sys.Scheduler.Init(); err != nil {
		return err
	}
	sys.logf("kthread: subsystem OK\n")

	sys.Clock = clock.New(sys.Scheduler)
	sys.Clock.Init()
	sys.logf("system: pit OK (%d Hz)\n", clock.TickRate)

	irq.HandleLine(irq.PowerButton, sys.powerButton)

	sys.Input = tty.NewLineDiscipline(sys.Scheduler, sys.Terminal)
	sys.Keyboard = kbd.New(sys.Scheduler, info.KeyboardPort, sys.Input)
	if err = initDriver(sys.Keyboard); err != nil {
		return err
	}

	if _, err = sys.Scheduler.Create(sys.Keyboard.Run, nil, "kb_driver"); err != nil {
		sys.logf("kthread: kb_driver NOT OK\n")
		return err
	}
	sys.logf("kthread: kb_driver OK\n")

	entry := info.Main
	if entry == nil {
		entry = sys.shell
	}

	if _, err = sys.Scheduler.Create(entry, sys, "main"); err != nil {
		sys.logf("kthread: main NOT OK\n")
		return err
	}
	sys.logf("kthread: main OK\n")

	return nil
}

// powerButton services the power button line by halting the CPU.
func (sys *System) powerButton(line irq.Line) {
	irq.Acknowledge(line)
	sys.logf("system: power button pressed\n")
	cpuHaltFn()
}

// logf writes a message tagged with the kmain prefix to the active output
// sink.
func (sys *System) logf(format string, args ...interface{}) {
	sys.log.Sink = kfmt.GetOutputSink()
	kfmt.Fprintf(&sys.log, format, args...)
}

// initDriver initializes drv logging its output to the active sink tagged
// with the driver name and version.
func initDriver(drv device.Driver) *kernel.Error {
	var w = kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

	strBuf.Reset()
	major, minor, patch := drv.DriverVersion()
	kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
	w.Prefix = strBuf.Bytes()

	if err := drv.DriverInit(&w); err != nil {
		kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
		return err
	}

	kfmt.Fprintf(&w, "initialized\n")
	return nil
}
