// Package arena implements the bump allocator that carves raw memory out of
// the heap extent handed to the kernel by the boot collaborator.
package arena

import (
	"antiglory/kernel"
	"antiglory/kernel/mem"
)

var (
	errOutOfMemory    = &kernel.Error{Module: "arena", Message: "out of memory"}
	errNotInitialized = &kernel.Error{Module: "arena", Message: "arena not initialized"}
)

// Arena is a bump allocator over the fixed region [start, end). Allocations
// advance a break pointer and are never returned.
//
// Arena does not synchronize access to the break pointer. It must only be
// advanced while holding an allocator cache lock or while the kernel is still
// running single-threaded.
type Arena struct {
	start, brk, end uintptr
}

// Init sets up the arena to hand out memory from the region [start, end).
// The start address is rounded up to mem.ChunkAlignment.
func (a *Arena) Init(start, end uintptr) *kernel.Error {
	start = mem.AlignAddr(start, mem.ChunkAlignment)
	if start == 0 || start >= end {
		return errOutOfMemory
	}

	a.start, a.brk, a.end = start, start, end
	return nil
}

// Brk advances the break pointer by increment bytes (rounded up to
// mem.ChunkAlignment) and returns its previous value. Brk(0) returns the
// current break without modifying it.
func (a *Arena) Brk(increment mem.Size) (uintptr, *kernel.Error) {
	if a.brk == 0 {
		return 0, errNotInitialized
	}

	if increment == 0 {
		return a.brk, nil
	}

	increment = increment.AlignUp(mem.ChunkAlignment)
	if increment > mem.Size(a.end-a.brk) {
		return 0, errOutOfMemory
	}

	prev := a.brk
	a.brk += uintptr(increment)
	return prev, nil
}

// AllocPages reserves count contiguous pages and returns the address of the
// first one. The break pointer is first aligned to the next page boundary;
// the padding skipped over is lost.
func (a *Arena) AllocPages(count uint32) (uintptr, *kernel.Error) {
	if a.brk == 0 {
		return 0, errNotInitialized
	}

	if count == 0 {
		return 0, errOutOfMemory
	}

	pageStart := mem.AlignAddr(a.brk, mem.PageSize)
	size := mem.Size(count) << mem.PageShift
	if pageStart < a.brk || pageStart > a.end || size > mem.Size(a.end-pageStart) {
		return 0, errOutOfMemory
	}

	a.brk = pageStart + uintptr(size)
	return pageStart, nil
}

// Contains returns true if addr points inside the memory handed out by the
// arena so far.
func (a *Arena) Contains(addr uintptr) bool {
	return addr >= a.start && addr < a.brk
}

// Used returns the number of bytes consumed by allocations, including any
// alignment padding.
func (a *Arena) Used() mem.Size {
	return mem.Size(a.brk - a.start)
}

// Free returns the number of bytes still available for allocation.
func (a *Arena) Free() mem.Size {
	return mem.Size(a.end - a.brk)
}
