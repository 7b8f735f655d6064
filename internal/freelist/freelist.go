// Package freelist implements the single-size-class freelist/cache layer
// (spec.md §4.3): retain freed blocks of one class on an intrusive list for
// rapid reuse, delegating to the super only when the list is empty.
package freelist

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// Freelist is correct for exactly one size class; composing for many
// classes is the segregated layer's job (spec.md §4.3). Grounded on
// original_source/heaps/buildingblock/freelistheap.h, with the intrusive
// link replacing the teacher's slice-backed Pool.freeList
// (internal/allocator/pool.go) per spec.md §3's freelist-node data model.
type Freelist[S heap.Heap] struct {
	Super     S
	classSize uintptr

	mu   sync.Mutex
	head unsafe.Pointer
}

// New constructs a Freelist for a single class whose canonical size is
// classSize (must be at least a pointer word, spec.md §3 invariant).
func New[S heap.Heap](super S, classSize uintptr) *Freelist[S] {
	if classSize < unsafe.Sizeof(uintptr(0)) {
		classSize = unsafe.Sizeof(uintptr(0))
	}

	return &Freelist[S]{Super: super, classSize: classSize}
}

// Alignment matches the super's, since a freelist never changes the
// alignment of blocks it passes through.
func (f *Freelist[S]) Alignment() uintptr {
	return f.Super.Alignment()
}

// Alloc pops the head of the list; if empty, delegates to the super
// (spec.md §4.3).
func (f *Freelist[S]) Alloc(size uintptr) unsafe.Pointer {
	f.mu.Lock()
	ptr := heap.PopFront(&f.head)
	f.mu.Unlock()

	if ptr != nil {
		return ptr
	}

	return f.Super.Alloc(f.classSize)
}

// AllocCached pops the head of the list without falling through to the
// super, returning nil if the cache is empty. The segregated layer uses this
// to distinguish "this bin has nothing cached" from "this bin's super can
// still produce more" when sweeping past an exhausted class (spec.md §4.4).
func (f *Freelist[S]) AllocCached() unsafe.Pointer {
	f.mu.Lock()
	defer f.mu.Unlock()

	return heap.PopFront(&f.head)
}

// Free prepends ptr to the list (spec.md §4.3).
func (f *Freelist[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	f.mu.Lock()
	heap.PushFront(&f.head, ptr)
	f.mu.Unlock()
}

// Realloc is not meaningful for a single fixed size class: a shrink or
// growth within the class is a no-op; crossing the class boundary is the
// segregated layer's responsibility.
func (f *Freelist[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return f.Alloc(size)
	}

	if size == 0 {
		f.Free(ptr)

		return nil
	}

	if size <= f.classSize {
		return ptr
	}

	newPtr := f.Alloc(size)
	if newPtr == nil {
		return nil
	}

	heap.CopyBytes(newPtr, ptr, f.classSize)
	f.Free(ptr)

	return newPtr
}

// UsableSize is the class's canonical size for any block on this list.
func (f *Freelist[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	return f.classSize
}

// Clear drains the list back to the super (spec.md §4.3).
func (f *Freelist[S]) Clear() {
	f.mu.Lock()
	head := f.head
	f.head = nil
	f.mu.Unlock()

	for {
		ptr := heap.PopFront(&head)
		if ptr == nil {
			break
		}

		f.Super.Free(ptr)
	}
}
