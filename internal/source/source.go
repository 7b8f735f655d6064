// Package source implements the top-of-stack OS-memory provider (spec.md
// §4.1): page-granular acquisition from mmap/VirtualAlloc, with a sized-free
// variant (Sized) that keeps each region's length in a Go map.
package source

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// Mmap is the page-granular source layer. It has no super — it is the top of
// the stack (spec.md §2 "Top (source)"). Mmap must never call the public
// allocation surface: doing so would recurse through the interposition shim
// forever (spec.md §4.1).
type Mmap struct {
	mu        sync.Mutex
	allocated uintptr
}

// New constructs an Mmap source layer.
func New() *Mmap {
	return &Mmap{}
}

// PageSize returns the OS page size.
func PageSize() int {
	return pageSizeImpl()
}

// Alignment returns the OS page size.
func (m *Mmap) Alignment() uintptr {
	return uintptr(PageSize())
}

// Alloc acquires a fresh page-aligned region of at least size bytes,
// rounded up to a whole number of pages. Returns nil on failure; never
// panics (spec.md §4.1: "On failure, acquire returns null and never
// throws").
func (m *Mmap) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	n := heap.AlignUp(size, m.Alignment())
	if n == 0 {
		return nil
	}

	ptr, ok := mapPages(n)
	if !ok {
		return nil
	}

	m.mu.Lock()
	m.allocated += n
	m.mu.Unlock()

	return ptr
}

// Free is equivalent to Release without a known length: Mmap cannot recover
// the original length on its own, so callers that need unsized free should
// wrap Mmap in Sized.
func (m *Mmap) Free(ptr unsafe.Pointer) {
	// Intentionally unsupported without a known length; see Sized.
}

// Release unmaps exactly the region previously acquired at ptr with length
// n (spec.md §4.1 "release(p, n)").
func (m *Mmap) Release(ptr unsafe.Pointer, n uintptr) {
	if ptr == nil || n == 0 {
		return
	}

	n = heap.AlignUp(n, m.Alignment())
	unmapPages(ptr, n)

	m.mu.Lock()
	if m.allocated >= n {
		m.allocated -= n
	}
	m.mu.Unlock()
}

// AdviseRelease hints that the range may be returned to the OS without
// invalidating the mapping (spec.md §4.1 "advise_release").
func (m *Mmap) AdviseRelease(ptr unsafe.Pointer, n uintptr) {
	advisePages(ptr, heap.AlignUp(n, m.Alignment()))
}

// Realloc has no meaningful implementation at the source layer: regions are
// acquired and released whole, so a non-nil ptr yields nil. Layers that
// track block sizes (header, kingsley, ansi) implement Realloc in terms of
// Alloc+copy+Free.
func (m *Mmap) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return m.Alloc(size)
	}

	return nil
}

// UsableSize is not tracked at the source layer without Sized.
func (m *Mmap) UsableSize(ptr unsafe.Pointer) uintptr {
	return 0
}

// Clear is a no-op: the source layer never tracks individual regions well
// enough to release them all without Sized bookkeeping.
func (m *Mmap) Clear() {}

// TotalMapped returns the number of bytes currently mapped through this
// source instance, for diagnostics.
func (m *Mmap) TotalMapped() uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.allocated
}
