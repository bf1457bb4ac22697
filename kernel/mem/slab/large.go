package slab

import (
	"unsafe"

	"antiglory/kernel"
	"antiglory/kernel/irq"
	"antiglory/kernel/mem"
)

const (
	// largeMagic tags the first word of a page run used by a large
	// allocation. It differs from slabMagic so that a large block can never
	// be mistaken for a slab.
	largeMagic = uint32(0x1a26e0b1)

	largeHeaderSize = unsafe.Sizeof(largeHeader{})
)

// largeHeader is stored at the start of the first page of a large
// allocation. A pages value of zero marks a released allocation.
type largeHeader struct {
	magic uint32
	_     uint32
	pages uintptr
}

type largeStats struct {
	allocs, released, pages uint64
}

func largeAt(addr uintptr) *largeHeader {
	return (*largeHeader)(unsafe.Pointer(addr))
}

// allocLarge reserves enough whole pages to hold a header plus size bytes
// and returns the address of the zeroed payload.
func (alloc *Allocator) allocLarge(size mem.Size) (uintptr, *kernel.Error) {
	pages := (size + mem.Size(largeHeaderSize)).Pages()

	state := irq.Disable()
	alloc.largeLock.Acquire()
	base, err := alloc.arena.AllocPages(pages)
	if err == nil {
		hdr := largeAt(base)
		hdr.magic = largeMagic
		hdr.pages = uintptr(pages)

		alloc.large.allocs++
		alloc.large.pages += uint64(pages)
	}
	alloc.largeLock.Release()
	irq.Restore(state)

	if err != nil {
		return 0, errOutOfMemory
	}

	payload := base + largeHeaderSize
	mem.Memset(payload, 0, mem.Size(pages)<<mem.PageShift-mem.Size(largeHeaderSize))
	return payload, nil
}

// freeLarge marks the large allocation at base as released. Its pages are
// not returned to the arena.
func (alloc *Allocator) freeLarge(base, addr uintptr) *kernel.Error {
	if addr != base+largeHeaderSize {
		return errInvalidFree
	}

	state := irq.Disable()
	defer irq.Restore(state)
	alloc.largeLock.Acquire()
	defer alloc.largeLock.Release()

	hdr := largeAt(base)
	if hdr.pages == 0 {
		return errDoubleFree
	}

	hdr.pages = 0
	alloc.large.released++
	return nil
}
