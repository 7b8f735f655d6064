// Package ansi implements the top-of-stack ANSI adapter (spec.md §4.8): the
// conventional allocate/free/reallocate/callocate/aligned_allocate surface,
// enforcing zero-size, overflow, alignment, and realloc/calloc semantics
// above an arbitrary composite. Grounded on
// original_source/wrappers/{ansiwrapper.h,generic-memalign.cpp}.
package ansi

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// lastBlock lets Adapter opt into the arena's in-place-growth fast path
// without depending on any specific layer beneath it.
type lastBlock interface {
	LastBlock() (unsafe.Pointer, bool)
}

// Adapter presents ANSI semantics over Super (spec.md §4.8).
type Adapter[S heap.Heap] struct {
	Super S

	mu      sync.Mutex
	aligned map[unsafe.Pointer]unsafe.Pointer // aligned interior ptr -> base ptr
}

// New constructs an Adapter over super.
func New[S heap.Heap](super S) *Adapter[S] {
	return &Adapter[S]{
		Super:   super,
		aligned: make(map[unsafe.Pointer]unsafe.Pointer),
	}
}

// Alignment matches the super's.
func (a *Adapter[S]) Alignment() uintptr {
	return a.Super.Alignment()
}

// Allocate rounds size up to at least the declared alignment and rejects
// requests that overflow half the address space (spec.md §4.8:
// "allocate(0) returns a non-null block... allocate(n) where n overflows
// past half the address space returns null").
func (a *Adapter[S]) Allocate(size uintptr) unsafe.Pointer {
	if heap.OverflowsHalfAddressSpace(size) {
		return nil
	}

	align := a.Alignment()
	if size < align {
		size = align
	}

	size = heap.AlignUp(size, align)
	if size == 0 {
		return nil
	}

	return a.Super.Alloc(size)
}

// Alloc satisfies heap.Heap in terms of Allocate, so an Adapter can itself
// serve as a Super for another layer (e.g. a debug wrapper).
func (a *Adapter[S]) Alloc(size uintptr) unsafe.Pointer {
	return a.Allocate(size)
}

// Free is a no-op on nil (spec.md §4.8 "free(null) is a no-op"). A pointer
// previously returned by AlignedAllocate is redirected to its recorded base.
func (a *Adapter[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	a.mu.Lock()
	base, ok := a.aligned[ptr]
	if ok {
		delete(a.aligned, ptr)
	}
	a.mu.Unlock()

	if ok {
		a.Super.Free(base)

		return
	}

	a.Super.Free(ptr)
}

// Reallocate implements spec.md §4.8's reallocate contract: nil behaves as
// Allocate, a zero size frees and returns nil, and a size no larger than
// ptr's current usable size returns ptr unchanged. Otherwise a fresh block
// is allocated, min(old, new) bytes are copied, and the old block is freed.
// When the super exposes a LastBlock fast path (the arena layer's
// XallocHeap-style optimization, SPEC_FULL.md §D.2) and ptr is that last
// block, Reallocate first tries to grow it in place.
func (a *Adapter[S]) Reallocate(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return a.Allocate(size)
	}

	if size == 0 {
		a.Free(ptr)

		return nil
	}

	oldSize := a.UsableSize(ptr)
	if oldSize >= size {
		return ptr
	}

	if lb, ok := any(a.Super).(lastBlock); ok {
		if last, isLast := lb.LastBlock(); isLast && last == ptr {
			if grown := a.Super.Realloc(ptr, size); grown == ptr {
				return ptr
			}
		}
	}

	newPtr := a.Allocate(size)
	if newPtr == nil {
		return nil
	}

	copySize := oldSize
	if size < copySize {
		copySize = size
	}

	heap.CopyBytes(newPtr, ptr, copySize)
	a.Free(ptr)

	return newPtr
}

// Realloc satisfies heap.Heap in terms of Reallocate.
func (a *Adapter[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return a.Reallocate(ptr, size)
}

// Callocate allocates a*b bytes, zero-fills, and returns the block; overflow
// in a*b yields nil (spec.md §4.8).
func (a *Adapter[S]) Callocate(count, size uintptr) unsafe.Pointer {
	if count != 0 && size > heap.MaxSize/count {
		return nil
	}

	total := count * size

	ptr := a.Allocate(total)
	if ptr == nil {
		return nil
	}

	heap.ZeroBytes(ptr, total)

	return ptr
}

// UsableSize delegates to the super; nil reports 0. A pointer returned by
// AlignedAllocate is redirected to its recorded base, since the super never
// allocated anything starting exactly at the interior pointer.
func (a *Adapter[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	a.mu.Lock()
	base, ok := a.aligned[ptr]
	a.mu.Unlock()

	if ok {
		return a.Super.UsableSize(base)
	}

	return a.Super.UsableSize(ptr)
}

// Clear delegates to the super and forgets every aligned-interior mapping.
func (a *Adapter[S]) Clear() {
	a.mu.Lock()
	a.aligned = make(map[unsafe.Pointer]unsafe.Pointer)
	a.mu.Unlock()

	a.Super.Clear()
}
