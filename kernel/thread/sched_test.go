package thread

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unsafe"

	"antiglory/kernel/irq"
	"antiglory/kernel/kfmt"
	"antiglory/kernel/mem"
)

func TestStateString(t *testing.T) {
	specs := []struct {
		state State
		exp   string
	}{
		{Unused, "UNUSED"},
		{Runnable, "RUNNABLE"},
		{Running, "RUNNING"},
		{Blocked, "BLOCKED"},
		{Zombie, "ZOMBIE"},
		{State(42), "?"},
	}

	for specIndex, spec := range specs {
		if got := spec.state.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestRoundRobin(t *testing.T) {
	h := newHarness(t, 32)

	var order []string
	worker := func(arg interface{}) {
		for i := 0; i < 2; i++ {
			order = append(order, arg.(string))
			if len(order) == 6 {
				h.stop()
			}
			h.s.Yield()
		}
	}

	for _, name := range []string{"A", "B", "C"} {
		h.create(worker, name, name)
	}

	h.run()

	if exp, got := "ABCABC", strings.Join(order, ""); got != exp {
		t.Fatalf("expected execution order %q; got %q", exp, got)
	}
}

func TestYieldWithSingleThread(t *testing.T) {
	h := newHarness(t, 16)

	var (
		before, after uint64
		current       ID
	)
	id := h.create(func(interface{}) {
		before = h.s.Switches()
		h.s.Yield()
		after = h.s.Switches()
		current = h.s.Current()
		h.stop()
	}, nil, "lonely")

	h.run()

	if before != after {
		t.Fatalf("expected Yield without other runnable threads not to switch; switches went from %d to %d", before, after)
	}

	if current != id {
		t.Fatalf("expected current thread to be %d; got %d", id, current)
	}
}

func TestRunQueueMembership(t *testing.T) {
	h := newHarness(t, 32)
	wq := h.s.NewWaitQueue()

	check := func(step string) {
		for slot := range h.s.table {
			tcb := &h.s.table[slot]
			inRunQueue := h.s.rq.contains(slot)
			runnable := tcb.state == Runnable || tcb.state == Running

			if runnable != inRunQueue {
				t.Errorf("[%s] slot %d in state %s: in run queue = %t", step, slot, tcb.state, inRunQueue)
			}

			if inWaitQueue := wq.contains(slot); inWaitQueue != (tcb.state == Blocked) {
				t.Errorf("[%s] slot %d in state %s: in wait queue = %t", step, slot, tcb.state, inWaitQueue)
			}
		}
	}

	var sleeperID, quitterID ID
	driver := func(interface{}) {
		check("start")

		// the sleeper blocks and the quitter exits before we run again
		h.s.Yield()
		check("after block and exit")

		if info, _ := h.s.Lookup(sleeperID); info.State != Blocked {
			t.Errorf("expected sleeper to be blocked; got %s", info.State)
		}

		if info, _ := h.s.Lookup(quitterID); info.State != Zombie || info.ExitCode != 3 {
			t.Errorf("expected quitter to be a zombie with exit code 3; got %s with exit code %d", info.State, info.ExitCode)
		}

		if exp, got := 1, h.s.Len(); got != exp {
			t.Errorf("expected run queue length %d; got %d", exp, got)
		}

		wq.WakeOne()
		check("after wake")

		h.s.Yield()
		check("after sleeper exit")

		if info, _ := h.s.Lookup(sleeperID); info.State != Zombie {
			t.Errorf("expected woken sleeper to run to completion; got %s", info.State)
		}

		h.stop()
	}

	h.create(driver, nil, "driver")
	sleeperID = h.create(func(interface{}) { wq.Sleep() }, nil, "sleeper")
	quitterID = h.create(func(interface{}) { h.s.Exit(3) }, nil, "quitter")

	h.run()
}

func TestWaitQueueWakeOrder(t *testing.T) {
	h := newHarness(t, 64)
	wq := h.s.NewWaitQueue()

	var woken []string
	sleeper := func(arg interface{}) {
		wq.Sleep()
		woken = append(woken, arg.(string))
	}

	waker := func(interface{}) {
		if wq.WakeOne() {
			t.Error("expected WakeOne on an empty queue to return false")
		}

		// let every sleeper block
		h.s.Yield()
		if exp, got := 3, wq.Len(); got != exp {
			t.Errorf("expected %d sleeping threads; got %d", exp, got)
		}

		for wq.WakeOne() {
			h.s.Yield()
		}

		for _, name := range []string{"D", "E"} {
			if _, err := h.s.Create(sleeper, name, name); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}

		h.s.Yield()
		if exp, got := 2, wq.WakeAll(); got != exp {
			t.Errorf("expected WakeAll to wake %d threads; got %d", exp, got)
		}

		if wq.Len() != 0 {
			t.Errorf("expected WakeAll to drain the queue; %d threads left", wq.Len())
		}

		h.s.Yield()
		h.stop()
	}

	h.create(waker, nil, "waker")
	for _, name := range []string{"A", "B", "C"} {
		h.create(sleeper, name, name)
	}

	h.run()

	if exp, got := "ABCDE", strings.Join(woken, ""); got != exp {
		t.Fatalf("expected wake order %q; got %q", exp, got)
	}
}

func TestExitAndReap(t *testing.T) {
	h := newHarness(t, 32)

	var (
		parentID, childID, returnerID ID
		deferredRan                   bool
	)

	child := func(interface{}) {
		defer func() { deferredRan = true }()
		h.s.Exit(7)
		t.Error("expected Exit not to return")
	}

	parent := func(interface{}) {
		h.s.Yield()

		info, ok := h.s.Lookup(childID)
		if !ok || info.State != Zombie || info.ExitCode != 7 {
			t.Errorf("expected child to be a zombie with exit code 7; got %+v", info)
		}

		if info.StackBase != 0 {
			t.Errorf("expected zombie stack to be released; got 0x%x", info.StackBase)
		}

		if !deferredRan {
			t.Error("expected deferred calls to run when a thread exits")
		}

		if _, err := h.s.Reap(parentID); err != errNotZombie {
			t.Errorf("expected reaping a running thread to return errNotZombie; got %v", err)
		}

		if code, err := h.s.Reap(childID); err != nil || code != 7 {
			t.Errorf("expected Reap to return exit code 7; got %d, %v", code, err)
		}

		if _, ok := h.s.Lookup(childID); ok {
			t.Error("expected reaped thread to be gone")
		}

		if _, err := h.s.Reap(childID); err != errNoSuchThread {
			t.Errorf("expected reaping twice to return errNoSuchThread; got %v", err)
		}

		if code, err := h.s.Reap(returnerID); err != nil || code != 0 {
			t.Errorf("expected returning from the entry to exit with code 0; got %d, %v", code, err)
		}

		if st := h.alloc.Stats(); st.LargeReleased != 2 {
			t.Errorf("expected both exited thread stacks to be freed; got %d", st.LargeReleased)
		}

		id, err := h.s.Create(func(interface{}) {}, nil, "again")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		if id != returnerID+1 {
			t.Errorf("expected thread IDs to keep increasing; got %d", id)
		}

		if slot := h.s.slotOf(id); slot != 1 {
			t.Errorf("expected the reaped slot 1 to be reused; got %d", slot)
		}

		h.stop()
	}

	parentID = h.create(parent, nil, "parent")
	childID = h.create(child, nil, "child")
	returnerID = h.create(func(interface{}) {}, nil, "returner")

	h.run()
}

func TestExitLastThreadPanics(t *testing.T) {
	defer func(origPanicFn func(interface{})) { panicFn = origPanicFn }(panicFn)

	h := newHarness(t, 16)
	got := h.mockPanic(true)

	h.create(func(interface{}) {}, nil, "lonely")
	h.run()

	if *got != errNoRunnableThread {
		t.Fatalf("expected panic with errNoRunnableThread; got %v", *got)
	}
}

func TestThreadPanicIsRouted(t *testing.T) {
	defer func(origPanicFn func(interface{})) { panicFn = origPanicFn }(panicFn)

	h := newHarness(t, 16)
	got := h.mockPanic(true)

	h.create(func(interface{}) { panic("boom") }, nil, "faulty")
	h.run()

	if *got != "boom" {
		t.Fatalf("expected runtime panic to reach panicFn; got %v", *got)
	}
}

func TestCorruptedInitialFrame(t *testing.T) {
	defer func(origPanicFn func(interface{})) { panicFn = origPanicFn }(panicFn)

	h := newHarness(t, 16)
	got := h.mockPanic(true)

	h.create(func(interface{}) { t.Error("expected thread with corrupted frame not to run") }, nil, "corrupt")
	*(*uintptr)(unsafe.Pointer(h.s.table[0].ctx.sp)) = 0

	h.run()

	if *got != errStackCorrupted {
		t.Fatalf("expected panic with errStackCorrupted; got %v", *got)
	}
}

func TestStartWithEmptyRunQueue(t *testing.T) {
	defer func(origPanicFn func(interface{})) { panicFn = origPanicFn }(panicFn)

	h := newHarness(t, 4)
	got := h.mockPanic(false)

	h.s.Start()

	if *got != errNoRunnableThread {
		t.Fatalf("expected panic with errNoRunnableThread; got %v", *got)
	}
}

func TestCreateErrors(t *testing.T) {
	t.Run("thread table full", func(t *testing.T) {
		h := newHarness(t, 3*MaxThreads+1)

		for i := 0; i < MaxThreads; i++ {
			h.create(func(interface{}) {}, nil, "filler")
		}

		id, err := h.s.Create(func(interface{}) {}, nil, "overflow")
		if err != errThreadTableFull || id != InvalidID {
			t.Fatalf("expected (InvalidID, errThreadTableFull); got (%d, %v)", id, err)
		}

		if exp, got := MaxThreads, h.s.Len(); got != exp {
			t.Fatalf("expected run queue length %d; got %d", exp, got)
		}
	})

	t.Run("stack allocation failure", func(t *testing.T) {
		irq.Init()
		s := New(failingAllocator{})

		id, err := s.Create(func(interface{}) {}, nil, "nostack")
		if err != errStackAlloc || id != InvalidID {
			t.Fatalf("expected (InvalidID, errStackAlloc); got (%d, %v)", id, err)
		}

		if s.Len() != 0 || s.table[0].state != Unused {
			t.Fatal("expected failed Create to leave the thread table untouched")
		}
	})
}

func TestThreadName(t *testing.T) {
	h := newHarness(t, 8)

	long := strings.Repeat("x", NameLen+8)
	id := h.create(func(interface{}) {}, nil, long)

	info, ok := h.s.Lookup(id)
	if !ok {
		t.Fatal("expected Lookup to find the new thread")
	}

	if exp := long[:NameLen]; info.Name != exp {
		t.Fatalf("expected name to be truncated to %q; got %q", exp, info.Name)
	}

	if info.State != Runnable {
		t.Fatalf("expected new thread to be runnable; got %s", info.State)
	}

	if h.s.Current() != InvalidID {
		t.Fatal("expected no current thread before Start")
	}
}

func TestSleepWithoutRunnableThreadsWaitsForInterrupt(t *testing.T) {
	h := newHarness(t, 16)
	wq := h.s.NewWaitQueue()

	irq.HandleLine(irq.Timer, func(line irq.Line) {
		wq.WakeOne()
		irq.Acknowledge(line)
	})

	var woke bool
	h.create(func(interface{}) {
		go func() {
			<-time.After(10 * time.Millisecond)
			irq.Raise(irq.Timer)
		}()

		wq.Sleep()
		woke = true
		h.stop()
	}, nil, "sleeper")

	h.run()

	if !woke {
		t.Fatal("expected the sleeper to be woken by the interrupt handler")
	}
}

func TestIdleThread(t *testing.T) {
	h := newHarness(t, 16)
	if err := h.s.Init(); err != nil {
		t.Fatal(err)
	}

	wq := h.s.NewWaitQueue()
	irq.HandleLine(irq.Timer, func(line irq.Line) {
		wq.WakeOne()
		irq.Acknowledge(line)
	})

	var idleSeen bool
	h.create(func(interface{}) {
		go func() {
			<-time.After(10 * time.Millisecond)
			irq.Raise(irq.Timer)
		}()

		wq.Sleep()

		info, ok := h.s.Lookup(1)
		idleSeen = ok && info.Name == "idle" && info.State == Runnable
		h.stop()
	}, nil, "sleeper")

	h.run()

	if !idleSeen {
		t.Fatal("expected the idle thread to remain runnable while the sleeper was blocked")
	}
}

func TestDump(t *testing.T) {
	h := newHarness(t, 16)

	var buf bytes.Buffer
	h.s.Dump(&buf)
	if exp, got := "[runqueue] <empty>\n", buf.String(); got != exp {
		t.Fatalf("expected empty dump %q; got %q", exp, got)
	}

	h.create(func(interface{}) {}, nil, "A")
	h.create(func(interface{}) {}, nil, "B")

	// turn B into a zombie behind the scheduler's back
	h.s.rq.remove(1)
	h.s.table[1].state = Zombie
	h.s.table[1].exitCode = 3

	h.create(func(interface{}) {}, nil, "C")

	buf.Reset()
	h.s.Dump(&buf)

	for _, exp := range []string{
		"[runqueue] head=0 (thread 1)\n",
		"  #0  id=1  state=RUNNABLE  sp=0x",
		`name="A" next="C"`,
		"  #1  id=3  state=RUNNABLE  sp=0x",
		`name="C" next="A"`,
		"[threads] id=2  state=ZOMBIE  name=\"B\"  exit=3\n",
	} {
		if !strings.Contains(buf.String(), exp) {
			t.Errorf("expected dump to contain %q; got:\n%s", exp, buf.String())
		}
	}
}

func TestDumpWithPrefix(t *testing.T) {
	h := newHarness(t, 8)
	h.create(func(interface{}) {}, nil, "A")

	var buf bytes.Buffer
	h.s.Dump(&kfmt.PrefixWriter{Sink: &buf, Prefix: []byte("[sched] ")})

	if !strings.HasPrefix(buf.String(), "[sched] [runqueue] head=0") {
		t.Fatalf("expected prefixed dump; got %q", buf.String())
	}
}

func TestContext(t *testing.T) {
	buf := make([]byte, 2*int(mem.PageSize))
	base := mem.AlignAddr(uintptr(unsafe.Pointer(&buf[0])), 16)
	size := mem.PageSize - 8

	ctx := newContext(base, size, 5)

	if exp := ((base + uintptr(size)) &^ 15) - 2*wordSize; ctx.sp != exp {
		t.Fatalf("expected saved stack cursor 0x%x; got 0x%x", exp, ctx.sp)
	}

	if !ctx.intact() {
		t.Fatal("expected fresh context to have an intact stack canary")
	}

	slot, ok := ctx.popInitialFrame()
	if !ok || slot != 5 {
		t.Fatalf("expected initial frame for slot 5; got %d, %t", slot, ok)
	}

	*(*uint64)(unsafe.Pointer(base)) = 0
	if ctx.intact() {
		t.Fatal("expected overwritten canary to be detected")
	}

	ctx = newContext(base, size, 5)
	*(*uintptr)(unsafe.Pointer(ctx.sp)) = 0xbad
	if _, ok = ctx.popInitialFrame(); ok {
		t.Fatal("expected overwritten frame token to be detected")
	}

	if boot := bootContext(); !boot.intact() {
		t.Fatal("expected boot context without a stack to be considered intact")
	}
}
