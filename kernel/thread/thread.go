// Package thread implements cooperative kernel threads: a fixed thread
// table, a round-robin run queue and the blocking primitives (wait queues and
// semaphores) layered on top of it.
//
// The CPU is a single core. Every kernel thread is backed by a goroutine but
// only the thread that currently owns the CPU executes; a context switch
// hands the CPU to the incoming thread and parks the outgoing one. Kernel
// state is therefore never accessed concurrently and the only mutual
// exclusion needed is masking interrupts through the irq package.
package thread

import (
	"antiglory/kernel"
	"antiglory/kernel/kfmt"
	"antiglory/kernel/mem"
)

const (
	// MaxThreads is the capacity of the thread table.
	MaxThreads = 64

	// StackSize is the size of the private stack allocated for each thread.
	StackSize = 8 * mem.Kb

	// NameLen is the maximum length of a thread name. Longer names are
	// truncated.
	NameLen = 32

	// noSlot marks the end of a run queue or wait queue link chain.
	noSlot = -1
)

// ID uniquely identifies a thread for the lifetime of the system.
type ID int32

// InvalidID is returned by operations that fail to produce a thread.
const InvalidID = ID(-1)

// State describes the scheduling state of a thread.
type State uint8

// The states a thread slot can be in.
const (
	Unused State = iota
	Runnable
	Running
	Blocked
	Zombie
)

// String implements fmt.Stringer for State.
func (s State) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Runnable:
		return "RUNNABLE"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Zombie:
		return "ZOMBIE"
	default:
		return "?"
	}
}

// Entry is the function executed by a thread. It receives the argument
// passed to Create. Returning from the entry function is equivalent to
// calling Exit(0).
type Entry func(arg interface{})

// StackAllocator is implemented by the kernel heap allocator that provides
// the memory for thread stacks.
type StackAllocator interface {
	Alloc(size mem.Size) (uintptr, *kernel.Error)
	Free(addr uintptr) *kernel.Error
}

var (
	// panicFn is invoked for unrecoverable scheduler errors. It is mocked
	// by tests.
	panicFn = kfmt.Panic

	errThreadTableFull  = &kernel.Error{Module: "thread", Message: "thread table is full"}
	errStackAlloc       = &kernel.Error{Module: "thread", Message: "could not allocate thread stack"}
	errNoRunnableThread = &kernel.Error{Module: "thread", Message: "no runnable thread"}
	errNoCurrentThread  = &kernel.Error{Module: "thread", Message: "scheduler invoked without a current thread"}
	errStackCorrupted   = &kernel.Error{Module: "thread", Message: "thread stack corrupted"}
	errNoSuchThread     = &kernel.Error{Module: "thread", Message: "no such thread"}
	errNotZombie        = &kernel.Error{Module: "thread", Message: "thread has not exited"}
)

// tcb is a thread control block.
type tcb struct {
	id      ID
	name    [NameLen]byte
	nameLen uint8
	state   State

	ctx   context
	stack uintptr

	// next links the thread into the run queue or a wait queue. It holds
	// the slot index of the following thread.
	next int

	entry    Entry
	arg      interface{}
	exitCode int
}

func (t *tcb) setName(name string) {
	t.nameLen = uint8(copy(t.name[:], name))
}

// Info is a snapshot of a thread control block.
type Info struct {
	ID           ID
	Name         string
	State        State
	ExitCode     int
	StackBase    uintptr
	StackPointer uintptr
}

func (t *tcb) info() Info {
	return Info{
		ID:           t.id,
		Name:         string(t.name[:t.nameLen]),
		State:        t.state,
		ExitCode:     t.exitCode,
		StackBase:    t.stack,
		StackPointer: t.ctx.sp,
	}
}
