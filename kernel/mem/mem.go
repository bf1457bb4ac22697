// Package mem defines the memory size units and page geometry shared by the
// kernel allocators together with a few raw memory helpers.
package mem

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize).
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// ChunkAlignment is the granularity used for every allocation handed out
	// by the kernel heap.
	ChunkAlignment = Size(8)
)

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Pages returns the number of pages that are required for storing this size.
func (s Size) Pages() uint32 {
	pageSizeMinus1 := PageSize - 1
	return uint32((s+pageSizeMinus1)&^pageSizeMinus1) >> PageShift
}

// AlignUp rounds s up to the next multiple of align which must be a power
// of 2.
func (s Size) AlignUp(align Size) Size {
	return (s + align - 1) &^ (align - 1)
}

// PageBase masks addr down to the start of the page that contains it.
func PageBase(addr uintptr) uintptr {
	return addr &^ uintptr(PageSize-1)
}

// AlignAddr rounds addr up to the next multiple of align which must be a
// power of 2.
func AlignAddr(addr uintptr, align Size) uintptr {
	return (addr + uintptr(align-1)) &^ uintptr(align-1)
}
