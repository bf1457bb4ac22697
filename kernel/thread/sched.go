package thread

import (
	"runtime"

	"antiglory/kernel"
	"antiglory/kernel/irq"
)

// Scheduler owns the thread table and the run queue. A single Scheduler is
// constructed during boot and shared by every subsystem that needs to create,
// block or wake threads.
//
// The Scheduler methods must be invoked either by the thread that currently
// owns the CPU or by the boot code before Start is called.
type Scheduler struct {
	alloc StackAllocator

	table [MaxThreads]tcb
	rq    runQueue

	// current is the slot of the thread that owns the CPU or noSlot
	// before the scheduler has been started.
	current int

	nextID   ID
	boot     context
	switches uint64
}

// New returns a scheduler with an empty thread table. Thread stacks are
// obtained from alloc.
func New(alloc StackAllocator) *Scheduler {
	s := &Scheduler{
		alloc:   alloc,
		current: noSlot,
		nextID:  1,
		boot:    bootContext(),
	}

	for slot := range s.table {
		s.table[slot].next = noSlot
	}
	s.rq.init(&s.table)

	return s
}

// Init creates the idle thread. The idle thread keeps the run queue from
// ever becoming empty and halts the CPU until the next interrupt whenever it
// is the only runnable thread.
func (s *Scheduler) Init() *kernel.Error {
	_, err := s.Create(s.idle, nil, "idle")
	return err
}

func (s *Scheduler) idle(_ interface{}) {
	for {
		s.Yield()

		state := irq.Disable()
		if s.rq.len == 1 {
			irq.Wait()
		}
		irq.Restore(state)
	}
}

// Create allocates a thread that will run entry(arg) and appends it to the
// run queue. The thread does not run until the scheduler selects it.
//
// Create fails if the thread table is full or if the thread stack cannot be
// allocated.
func (s *Scheduler) Create(entry Entry, arg interface{}, name string) (ID, *kernel.Error) {
	state := irq.Disable()
	defer irq.Restore(state)

	slot := noSlot
	for index := range s.table {
		if s.table[index].state == Unused {
			slot = index
			break
		}
	}

	if slot == noSlot {
		return InvalidID, errThreadTableFull
	}

	stack, err := s.alloc.Alloc(StackSize)
	if err != nil {
		return InvalidID, errStackAlloc
	}

	t := &s.table[slot]
	*t = tcb{
		id:    s.nextID,
		state: Runnable,
		ctx:   newContext(stack, StackSize, slot),
		stack: stack,
		next:  noSlot,
		entry: entry,
		arg:   arg,
	}
	t.setName(name)
	s.nextID++

	go s.trampoline(slot, t.ctx.resume)

	s.rq.push(slot)
	return t.id, nil
}

// trampoline is the first code executed by a new thread once it receives the
// CPU. It invokes the thread entry with interrupts enabled and terminates
// the thread when the entry returns, calls Exit or panics.
func (s *Scheduler) trampoline(slot int, resume chan struct{}) {
	<-resume

	t := &s.table[slot]
	if got, ok := t.ctx.popInitialFrame(); !ok || got != slot {
		panicFn(errStackCorrupted)
	}

	defer s.terminate(slot)

	irq.Enable()
	t.entry(t.arg)
}

func (s *Scheduler) terminate(slot int) {
	if r := recover(); r != nil {
		panicFn(r)
	}

	s.exit(slot)
}

// Yield relinquishes the CPU to the next runnable thread. It returns
// immediately if no other thread is runnable.
func (s *Scheduler) Yield() {
	state := irq.Disable()
	s.schedule()
	irq.Restore(state)
}

// schedule selects the next thread to run and switches to it. When the
// current thread is still running, the run queue rotates so that its
// successor becomes the new head; otherwise the head runs next. It must be
// called with interrupts disabled.
func (s *Scheduler) schedule() {
	prev := s.current
	if prev == noSlot {
		panicFn(errNoCurrentThread)
		return
	}

	cur := &s.table[prev]

	// A blocked thread with nothing else runnable halts the CPU until an
	// interrupt handler wakes somebody up.
	for s.rq.empty() {
		irq.Wait()
		irq.Disable()
	}

	var next int
	if cur.state == Blocked || cur.state == Zombie {
		next = s.rq.head
	} else {
		next = s.rq.rotate()
	}

	if next == prev {
		cur.state = Running
		return
	}

	if !cur.ctx.intact() {
		panicFn(errStackCorrupted)
	}

	if cur.state == Running {
		cur.state = Runnable
	}
	s.table[next].state = Running
	s.current = next
	s.switches++

	switchTo(&cur.ctx, &s.table[next].ctx)
}

// Exit terminates the calling thread with the supplied exit code. Deferred
// calls of the thread run before the CPU is handed to the next runnable
// thread. Exit never returns.
func (s *Scheduler) Exit(code int) {
	if s.current == noSlot {
		panicFn(errNoCurrentThread)
		return
	}

	s.table[s.current].exitCode = code
	runtime.Goexit()
}

// exit turns the thread at slot into a zombie, releases its stack and hands
// the CPU to the run queue head.
func (s *Scheduler) exit(slot int) {
	irq.Disable()

	t := &s.table[slot]
	if !t.ctx.intact() {
		panicFn(errStackCorrupted)
	}

	t.state = Zombie
	s.rq.remove(slot)

	if err := s.alloc.Free(t.stack); err != nil {
		panicFn(err)
	}
	t.stack = 0
	t.entry, t.arg = nil, nil

	if s.rq.empty() {
		panicFn(errNoRunnableThread)
		return
	}

	next := s.rq.head
	s.table[next].state = Running
	s.current = next
	s.switches++

	handoff(&s.table[next].ctx)
}

// Start hands the CPU from the boot code to the thread at the head of the
// run queue. The boot context is never resumed so Start does not return.
func (s *Scheduler) Start() {
	irq.Disable()

	if s.rq.empty() {
		panicFn(errNoRunnableThread)
		return
	}

	next := s.rq.head
	s.table[next].state = Running
	s.current = next
	s.switches++

	switchTo(&s.boot, &s.table[next].ctx)
}

// Current returns the ID of the thread that owns the CPU or InvalidID if the
// scheduler has not been started.
func (s *Scheduler) Current() ID {
	if s.current == noSlot {
		return InvalidID
	}

	return s.table[s.current].id
}

// Lookup returns a snapshot of the thread with the specified ID.
func (s *Scheduler) Lookup(id ID) (Info, bool) {
	state := irq.Disable()
	defer irq.Restore(state)

	if slot := s.slotOf(id); slot != noSlot {
		return s.table[slot].info(), true
	}

	return Info{}, false
}

// Len returns the number of threads in the run queue.
func (s *Scheduler) Len() int {
	return s.rq.len
}

// Switches returns the number of context switches performed so far.
func (s *Scheduler) Switches() uint64 {
	return s.switches
}

// Reap releases the table slot of an exited thread and returns its exit
// code. Zombie slots are only recycled through Reap.
func (s *Scheduler) Reap(id ID) (int, *kernel.Error) {
	state := irq.Disable()
	defer irq.Restore(state)

	slot := s.slotOf(id)
	if slot == noSlot {
		return 0, errNoSuchThread
	}

	t := &s.table[slot]
	if t.state != Zombie {
		return 0, errNotZombie
	}

	code := t.exitCode
	*t = tcb{next: noSlot}
	return code, nil
}

func (s *Scheduler) slotOf(id ID) int {
	for slot := range s.table {
		if s.table[slot].state != Unused && s.table[slot].id == id {
			return slot
		}
	}

	return noSlot
}
