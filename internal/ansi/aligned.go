package ansi

import (
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// AlignedAllocate returns a block whose pointer alignment is exactly
// alignment (a power of two, >= the composite's natural alignment). When
// natural alignment already satisfies the request, the ordinary allocator's
// result is returned as-is; otherwise an oversize block is allocated and an
// aligned interior pointer handed back, with the interior-to-base mapping
// recorded so Free and Reallocate can still honor it correctly (spec.md
// §4.8, grounded on original_source/wrappers/generic-memalign.cpp's
// oversize-and-align strategy).
func (a *Adapter[S]) AlignedAllocate(alignment, size uintptr) unsafe.Pointer {
	if !heap.IsPowerOfTwo(alignment) {
		return nil
	}

	if alignment <= a.Alignment() {
		return a.Allocate(size)
	}

	base := a.Allocate(size + 2*alignment)
	if base == nil {
		return nil
	}

	alignedAddr := (uintptr(base) + alignment - 1) &^ (alignment - 1)
	alignedPtr := unsafe.Pointer(alignedAddr)

	if alignedPtr == base {
		return base
	}

	a.mu.Lock()
	a.aligned[alignedPtr] = base
	a.mu.Unlock()

	return alignedPtr
}
