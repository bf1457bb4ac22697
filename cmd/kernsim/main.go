// Command kernsim boots the kernel inside a host process. The host terminal
// acts as the machine: its keyboard feeds the keyboard controller, its
// screen mirrors the VGA text console and a ticker drives the interval
// timer.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"antiglory/device/kbd"
	"antiglory/device/video/console"
	"antiglory/kernel/cpu"
	"antiglory/kernel/irq"
	"antiglory/kernel/kfmt"
	"antiglory/kernel/kmain"
	"antiglory/kernel/mem"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	tty "github.com/mattn/go-tty"
)

var (
	heapFlag     = flag.Uint("heap", 1024, "size of the kernel heap in KiB")
	tickFlag     = flag.Duration("tick", 10*time.Millisecond, "interval between timer interrupts")
	ttyFlag      = flag.String("tty", "", "terminal device to use instead of the controlling terminal")
	snapshotFlag = flag.String("snapshot", "", "write a PNG image of the console to this file when the CPU halts")
	drainFlag    = flag.Duration("drain", 200*time.Millisecond, "time to keep running after non-interactive input ends")
)

const (
	columns = 80
	rows    = 25

	// exit statuses
	exitHalted      = 0
	exitPanic       = 1
	exitInterrupted = 130
)

// machine holds the host resources backing the simulated hardware. The
// kernel refers to the heap and framebuffer through raw addresses so they
// must stay reachable for as long as the process runs.
type machine struct {
	heap []byte
	fb   [columns * rows]uint16

	cons *ansiConsole
	port *kbd.FIFOPort

	in      io.Reader
	out     io.Writer
	restore func() error

	// powerOffStatus is the exit status requested by the last power off.
	powerOffStatus atomic.Int32
}

func main() {
	flag.Parse()

	m := &machine{port: kbd.NewFIFOPort(kbd.QueueCapacity)}
	if err := m.openTerminal(); err != nil {
		log.Fatalf("unable to open terminal: %v", err)
	}

	heapSize := mem.Size(*heapFlag) * mem.Kb
	m.heap = make([]byte, heapSize+mem.PageSize)
	heapStart := mem.AlignAddr(uintptr(unsafe.Pointer(&m.heap[0])), mem.PageSize)

	m.cons = newANSIConsole(
		console.NewVgaTextConsole(columns, rows, uintptr(unsafe.Pointer(&m.fb[0]))),
		m.out,
	)

	// Halt runs on the thread that owns the CPU, so the console is not
	// being written while the snapshot is taken.
	cpu.SetHaltHandler(func() { m.shutdown(m.exitStatus(kfmt.Panicked())) })

	go m.tick(*tickFlag)
	go m.readKeys()

	kmain.Kmain(kmain.BootInfo{
		HeapStart:    heapStart,
		HeapEnd:      heapStart + uintptr(heapSize),
		Console:      m.cons,
		KeyboardPort: m.port,
	})
}

// openTerminal switches the terminal to raw mode when running interactively.
// Otherwise the machine reads its keyboard input from stdin.
func (m *machine) openTerminal() error {
	if *ttyFlag == "" && !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		m.in = os.Stdin
		m.out = colorable.NewColorableStdout()
		m.restore = func() error { return nil }
		return nil
	}

	var (
		term *tty.TTY
		err  error
	)

	if *ttyFlag != "" {
		term, err = tty.OpenDevice(*ttyFlag)
	} else {
		term, err = tty.Open()
	}
	if err != nil {
		return err
	}

	restoreMode := term.MustRaw()
	m.in = term.Input()
	m.out = colorable.NewColorable(term.Output())
	m.restore = func() error {
		io.WriteString(m.out, "\x1b[0m\r\n")
		restoreMode()
		return term.Close()
	}
	return nil
}

// tick raises the timer interrupt line at a fixed rate. The keyboard
// controller keeps its line asserted for as long as its output buffer holds
// unread bytes, so a lost keyboard interrupt is raised again on the next
// tick.
func (m *machine) tick(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		irq.Raise(irq.Timer)
		if m.port.Len() != 0 && irq.Pending(irq.Keyboard) == 0 {
			irq.Raise(irq.Keyboard)
		}
	}
}

// readKeys forwards host input to the keyboard controller, one make and one
// break code per key.
func (m *machine) readKeys() {
	var buf [1]byte
	for {
		if _, err := m.in.Read(buf[:]); err != nil {
			if err != io.EOF {
				log.Printf("keyboard: %v", err)
			}
			time.Sleep(*drainFlag)
			m.powerOff(exitHalted)
			return
		}

		ch, ok := translateKey(buf[0])
		if !ok {
			continue
		}

		if ch == ctrlC {
			m.powerOff(exitInterrupted)
			return
		}

		scancode, ok := kbd.Encode(ch)
		if !ok {
			continue
		}

		for _, code := range []uint8{scancode, scancode | 0x80} {
			for !m.port.Push(code) {
				time.Sleep(*tickFlag)
			}
			irq.Raise(irq.Keyboard)
		}
	}
}

// powerOff presses the power button. The kernel services the interrupt by
// halting the CPU, which terminates the process with status.
func (m *machine) powerOff(status int) {
	m.powerOffStatus.Store(int32(status))
	irq.Raise(irq.PowerButton)
}

// exitStatus returns the process exit status once the CPU has halted.
func (m *machine) exitStatus(panicked bool) int {
	if panicked {
		return exitPanic
	}

	return int(m.powerOffStatus.Load())
}

// shutdown restores the terminal, saves the console snapshot if requested
// and terminates the process.
func (m *machine) shutdown(code int) {
	if err := m.restore(); err != nil {
		log.Printf("unable to restore terminal: %v", err)
	}

	if *snapshotFlag != "" {
		if err := saveSnapshot(m.cons.VgaTextConsole, *snapshotFlag); err != nil {
			log.Printf("unable to save console snapshot: %v", err)
		}
	}

	os.Exit(code)
}
