package thread

import (
	"testing"
	"time"
	"unsafe"

	"antiglory/kernel"
	"antiglory/kernel/irq"
	"antiglory/kernel/mem"
	"antiglory/kernel/mem/arena"
	"antiglory/kernel/mem/slab"
)

// harness wires a scheduler to a slab allocator backed by Go memory and lets
// tests run the scheduler until one of the threads calls stop.
type harness struct {
	t      *testing.T
	s      *Scheduler
	alloc  *slab.Allocator
	heap   []byte
	stopCh chan struct{}
}

func newHarness(t *testing.T, pageCount int) *harness {
	irq.Init()

	heap := make([]byte, (pageCount+1)*int(mem.PageSize))
	start := mem.AlignAddr(uintptr(unsafe.Pointer(&heap[0])), mem.PageSize)

	a := new(arena.Arena)
	if err := a.Init(start, start+uintptr(pageCount)*uintptr(mem.PageSize)); err != nil {
		t.Fatal(err)
	}

	alloc := slab.New(a)
	return &harness{
		t:      t,
		s:      New(alloc),
		alloc:  alloc,
		heap:   heap,
		stopCh: make(chan struct{}),
	}
}

// create adds a thread to the scheduler and fails the test on error.
func (h *harness) create(entry Entry, arg interface{}, name string) ID {
	id, err := h.s.Create(entry, arg, name)
	if err != nil {
		h.t.Fatalf("unexpected error creating thread %q: %v", name, err)
	}
	return id
}

// run starts the scheduler and blocks until a thread invokes stop.
func (h *harness) run() {
	go h.s.Start()

	select {
	case <-h.stopCh:
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for the scheduled threads to finish")
	}
}

// stop hands control back to the test and parks the calling thread while it
// still owns the CPU, freezing the scheduler state for inspection.
func (h *harness) stop() {
	close(h.stopCh)
	select {}
}

// mockPanic replaces panicFn and returns a pointer to the recorded error. If
// stop is true, the mock also stops the harness.
func (h *harness) mockPanic(stop bool) *interface{} {
	var got interface{}
	panicFn = func(e interface{}) {
		got = e
		if stop {
			h.stop()
		}
	}
	return &got
}

type failingAllocator struct{}

func (failingAllocator) Alloc(mem.Size) (uintptr, *kernel.Error) {
	return 0, &kernel.Error{Module: "test", Message: "out of memory"}
}

func (failingAllocator) Free(uintptr) *kernel.Error {
	return nil
}
