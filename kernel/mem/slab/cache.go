package slab

import (
	"unsafe"

	"antiglory/kernel"
	"antiglory/kernel/mem"
	"antiglory/kernel/mem/arena"
	"antiglory/kernel/sync"
)

const (
	// slabMagic tags the first word of every page used as a slab.
	slabMagic = uint32(0x51ab51ab)

	slabHeaderSize = unsafe.Sizeof(slabHeader{})
)

// slabHeader occupies the start of each slab page. The object slots follow
// immediately after it.
type slabHeader struct {
	magic      uint32
	objectSize uint16
	capacity   uint16
	freeCount  uint16
	_          [6]byte

	// next links the slab into its cache's partial or full list.
	next uintptr

	// freeList points to the first free slot. The first word of each free
	// slot stores the address of the next free slot.
	freeList uintptr
}

func slabAt(addr uintptr) *slabHeader {
	return (*slabHeader)(unsafe.Pointer(addr))
}

// nextFree returns the free-list link stored in the free slot at obj.
func nextFree(obj uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(obj))
}

func setNextFree(obj, next uintptr) {
	*(*uintptr)(unsafe.Pointer(obj)) = next
}

// cache manages the slabs for one object size. Slabs with at least one free
// slot are kept in partial; slabs without free slots are kept in full.
type cache struct {
	objectSize    mem.Size
	partial, full uintptr
	lock          sync.Spinlock
}

// alloc pops an object from the first partial slab, carving a new slab from
// a if none is available. It must be called with the cache lock held.
func (c *cache) alloc(a *arena.Arena) (uintptr, *kernel.Error) {
	if c.partial == 0 {
		if err := c.grow(a); err != nil {
			return 0, err
		}
	}

	slabAddr := c.partial
	hdr := slabAt(slabAddr)

	obj := hdr.freeList
	hdr.freeList = nextFree(obj)
	hdr.freeCount--

	if hdr.freeCount == 0 {
		c.partial = hdr.next
		hdr.next = c.full
		c.full = slabAddr
	}

	mem.Memset(obj, 0, c.objectSize)
	return obj, nil
}

// grow carves a new slab page out of the arena, threads its slots into a
// free list and pushes it onto the partial list.
func (c *cache) grow(a *arena.Arena) *kernel.Error {
	page, err := a.AllocPages(1)
	if err != nil {
		return errOutOfMemory
	}

	mem.Memset(page, 0, mem.PageSize)

	hdr := slabAt(page)
	hdr.magic = slabMagic
	hdr.objectSize = uint16(c.objectSize)
	hdr.capacity = uint16((uintptr(mem.PageSize) - slabHeaderSize) / uintptr(c.objectSize))
	hdr.freeCount = hdr.capacity

	// Link the slots in address order so that a fresh slab hands out its
	// lowest slot first.
	first := page + slabHeaderSize
	for slot := uint16(0); slot < hdr.capacity; slot++ {
		obj := first + uintptr(slot)*uintptr(c.objectSize)
		next := obj + uintptr(c.objectSize)
		if slot == hdr.capacity-1 {
			next = 0
		}
		setNextFree(obj, next)
	}
	hdr.freeList = first

	hdr.next = c.partial
	c.partial = page
	return nil
}

// free pushes obj back onto the free list of the slab at slabAddr. It must
// be called with the cache lock held.
func (c *cache) free(slabAddr, obj uintptr) *kernel.Error {
	hdr := slabAt(slabAddr)

	// A page that merely looks like a slab (e.g. a large allocation payload)
	// is not linked into any of this cache's lists.
	if !linkedSlab(c.partial, slabAddr) && !linkedSlab(c.full, slabAddr) {
		return errInvalidFree
	}

	first := slabAddr + slabHeaderSize
	if obj < first {
		return errInvalidFree
	}

	offset := obj - first
	if offset%uintptr(c.objectSize) != 0 || offset/uintptr(c.objectSize) >= uintptr(hdr.capacity) {
		return errInvalidFree
	}

	for it := hdr.freeList; it != 0; it = nextFree(it) {
		if it == obj {
			return errDoubleFree
		}
	}

	if hdr.freeCount == 0 && !unlinkSlab(&c.full, slabAddr) {
		return errInvalidFree
	}

	setNextFree(obj, hdr.freeList)
	hdr.freeList = obj
	hdr.freeCount++

	if hdr.freeCount == 1 {
		hdr.next = c.partial
		c.partial = slabAddr
	}

	return nil
}

// linkedSlab returns true if the slab at target is a member of the list
// starting at head.
func linkedSlab(head, target uintptr) bool {
	for it := head; it != 0; it = slabAt(it).next {
		if it == target {
			return true
		}
	}

	return false
}

// unlinkSlab removes the slab at target from the list starting at head.
func unlinkSlab(head *uintptr, target uintptr) bool {
	for link := head; *link != 0; link = &slabAt(*link).next {
		if *link == target {
			*link = slabAt(target).next
			return true
		}
	}

	return false
}

// stats walks the cache's slab lists and tallies its accounting counters. It
// must be called with the cache lock held.
func (c *cache) stats() CacheStats {
	st := CacheStats{ObjectSize: c.objectSize}

	for it := c.partial; it != 0; it = slabAt(it).next {
		hdr := slabAt(it)
		st.PartialSlabs++
		st.TotalObjects += uint32(hdr.capacity)
		st.FreeObjects += uint32(hdr.freeCount)
	}

	for it := c.full; it != 0; it = slabAt(it).next {
		hdr := slabAt(it)
		st.FullSlabs++
		st.TotalObjects += uint32(hdr.capacity)
		st.FreeObjects += uint32(hdr.freeCount)
	}

	return st
}
