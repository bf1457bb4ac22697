// Package slab implements the kernel heap: power-of-two object caches backed
// by single-page slabs, plus whole-page allocations for objects that do not
// fit in a slab.
package slab

import (
	"unsafe"

	"antiglory/kernel"
	"antiglory/kernel/irq"
	"antiglory/kernel/mem"
	"antiglory/kernel/mem/arena"
	"antiglory/kernel/sync"
)

const (
	// NumCaches is the number of small-object size classes.
	NumCaches = 9

	// MaxSmallObject is the largest allocation served by a slab cache.
	// Larger requests are rounded up to whole pages.
	MaxSmallObject = mem.Size(2048)
)

var (
	// CacheSizes lists the object size of each cache in ascending order.
	CacheSizes = [NumCaches]mem.Size{8, 16, 32, 64, 128, 256, 512, 1024, 2048}

	errInvalidSize = &kernel.Error{Module: "slab", Message: "zero-sized allocation"}
	errOutOfMemory = &kernel.Error{Module: "slab", Message: "out of memory"}
	errDoubleFree  = &kernel.Error{Module: "slab", Message: "double free"}
	errInvalidFree = &kernel.Error{Module: "slab", Message: "address was not returned by Alloc"}
)

// Allocator hands out zeroed memory blocks carved from a bump arena. Blocks
// up to MaxSmallObject bytes are served by the cache with the smallest
// fitting object size; larger blocks get their own run of pages that is
// never reused once freed.
//
// Each cache is guarded by its own spinlock and all operations also mask
// interrupts, so Alloc and Free may be used from any kernel thread.
type Allocator struct {
	arena  *arena.Arena
	caches [NumCaches]cache

	largeLock sync.Spinlock
	large     largeStats
}

// New returns an allocator that obtains pages from the supplied arena.
func New(a *arena.Arena) *Allocator {
	alloc := &Allocator{arena: a}
	for index := range alloc.caches {
		alloc.caches[index].objectSize = CacheSizes[index]
	}

	return alloc
}

// Alloc reserves a zeroed block of at least size bytes and returns its
// address. The returned address is always aligned to mem.ChunkAlignment.
//
// Alloc returns an error if size is 0 or if the arena cannot provide the
// pages needed to satisfy the request.
func (alloc *Allocator) Alloc(size mem.Size) (uintptr, *kernel.Error) {
	if size == 0 {
		return 0, errInvalidSize
	}

	if size > MaxSmallObject {
		if size > alloc.arena.Free() {
			return 0, errOutOfMemory
		}
		return alloc.allocLarge(size.AlignUp(mem.ChunkAlignment))
	}

	c := &alloc.caches[cacheIndex(size.AlignUp(mem.ChunkAlignment))]

	state := irq.Disable()
	c.lock.Acquire()
	addr, err := c.alloc(alloc.arena)
	c.lock.Release()
	irq.Restore(state)

	return addr, err
}

// Free returns a block obtained by Alloc to the allocator. Freeing a nil
// address is a no-op.
//
// Free detects and reports (without modifying any allocator state) attempts
// to release a block twice or to release an address that was never returned
// by Alloc.
func (alloc *Allocator) Free(addr uintptr) *kernel.Error {
	if addr == 0 {
		return nil
	}

	base := mem.PageBase(addr)
	if !alloc.arena.Contains(addr) || !alloc.arena.Contains(base) {
		return errInvalidFree
	}

	switch *(*uint32)(unsafe.Pointer(base)) {
	case slabMagic:
		hdr := slabAt(base)
		index := cacheIndex(mem.Size(hdr.objectSize))
		if index < 0 || CacheSizes[index] != mem.Size(hdr.objectSize) {
			return errInvalidFree
		}

		c := &alloc.caches[index]
		state := irq.Disable()
		c.lock.Acquire()
		err := c.free(base, addr)
		c.lock.Release()
		irq.Restore(state)
		return err
	case largeMagic:
		return alloc.freeLarge(base, addr)
	default:
		return errInvalidFree
	}
}

// cacheIndex returns the index of the smallest cache whose objects can hold
// size bytes or -1 if size exceeds MaxSmallObject.
func cacheIndex(size mem.Size) int {
	for index, objSize := range CacheSizes {
		if size <= objSize {
			return index
		}
	}

	return -1
}
