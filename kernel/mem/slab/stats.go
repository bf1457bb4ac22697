package slab

import (
	"io"

	"antiglory/kernel/irq"
	"antiglory/kernel/kfmt"
	"antiglory/kernel/mem"
)

// CacheStats describes the slabs owned by a single cache.
type CacheStats struct {
	ObjectSize   mem.Size
	PartialSlabs uint32
	FullSlabs    uint32
	TotalObjects uint32
	FreeObjects  uint32
}

// InUse returns the number of objects currently handed out by the cache.
func (s CacheStats) InUse() uint32 {
	return s.TotalObjects - s.FreeObjects
}

// Stats is a snapshot of the allocator accounting counters.
type Stats struct {
	Caches [NumCaches]CacheStats

	// LargeAllocs counts large allocations; LargeReleased counts the ones
	// that have been freed. LargePages counts the pages consumed by large
	// allocations, including released ones.
	LargeAllocs   uint64
	LargeReleased uint64
	LargePages    uint64
}

// Stats returns a snapshot of the allocator accounting counters.
func (alloc *Allocator) Stats() Stats {
	var st Stats

	state := irq.Disable()
	for index := range alloc.caches {
		c := &alloc.caches[index]
		c.lock.Acquire()
		st.Caches[index] = c.stats()
		c.lock.Release()
	}

	alloc.largeLock.Acquire()
	st.LargeAllocs = alloc.large.allocs
	st.LargeReleased = alloc.large.released
	st.LargePages = alloc.large.pages
	alloc.largeLock.Release()
	irq.Restore(state)

	return st
}

// Dump writes a summary of the allocator state to w.
func (alloc *Allocator) Dump(w io.Writer) {
	st := alloc.Stats()

	for _, c := range st.Caches {
		if c.TotalObjects == 0 {
			continue
		}

		kfmt.Fprintf(w, "[slab] cache %4d: partial=%d full=%d objects=%d free=%d\n",
			uint64(c.ObjectSize), c.PartialSlabs, c.FullSlabs, c.TotalObjects, c.FreeObjects,
		)
	}

	kfmt.Fprintf(w, "[slab] large: allocs=%d released=%d pages=%d\n", st.LargeAllocs, st.LargeReleased, st.LargePages)
	kfmt.Fprintf(w, "[slab] arena: used=%dKb free=%dKb\n", uint64(alloc.arena.Used()/mem.Kb), uint64(alloc.arena.Free()/mem.Kb))
}
