// Package kingsley implements the Kingsley power-of-two segregated-fits
// allocator (spec.md §4.5): 29 size classes at S(i) = 8*2^i bytes, strictly
// segregated so a request is always rounded up to its own class rather than
// satisfied from a larger one. Grounded on
// original_source/heaps/general/kingsleyheap.h.
package kingsley

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
	"github.com/heaplayers-go/heaplayers/internal/seg"
)

// NumBins is the number of Kingsley size classes (kingsleyheap.h
// "enum { NUMBINS = 29 }").
const NumBins = 29

// ClassSize returns the canonical size of class i: S(i) = 8 * 2^i.
func ClassSize(class int) uintptr {
	return uintptr(1) << uint(class+3)
}

// SizeClass returns the smallest class that can satisfy size:
// C(s) = ceil(log2(max(s, 8))) - 3 (kingsleyheap.h's size2Class, which takes
// the ceiling via HL::ilog2).
func SizeClass(size uintptr) int {
	if size < 8 {
		size = 8
	}

	return heap.CeilLog2(size) - 3
}

// Heap is a Kingsley allocator: a StrictSegHeap instantiated with Kingsley's
// 29 power-of-two classes (spec.md §4.5). seg.SegHeap's Free/UsableSize take
// an explicit size rather than conforming to heap.Heap (a header layer is
// normally expected to supply it, DESIGN.md); Heap carries that header
// itself, classifying each pointer at Alloc time, so the composite assembly
// in internal/composite can treat a Kingsley stack as an ordinary
// heap.Heap. This mirrors the upstream assembly
// (original_source/wrappers/libkingsley.cpp), where the same SizeHeap
// instance backs both Little and Big.
type Heap[S heap.Heap] struct {
	*seg.StrictSegHeap[S]

	mu    sync.Mutex
	class map[unsafe.Pointer]int // -1 for a pointer routed to Big
}

// New constructs a Kingsley allocator. super backs every class's per-class
// cache; big backs objects above the largest class (S(28) = 2^31 bytes).
func New[S heap.Heap](super, big S) *Heap[S] {
	return &Heap[S]{
		StrictSegHeap: seg.NewStrict[S](super, big, NumBins, SizeClass, ClassSize),
		class:         make(map[unsafe.Pointer]int),
	}
}

// Alloc dispatches through the embedded StrictSegHeap and records which
// class (or Big) the returned pointer belongs to.
func (k *Heap[S]) Alloc(size uintptr) unsafe.Pointer {
	ptr := k.StrictSegHeap.Alloc(size)
	if ptr == nil {
		return nil
	}

	class := -1
	if size <= k.MaxObjectSize() {
		class = SizeClass(size)
	}

	k.mu.Lock()
	k.class[ptr] = class
	k.mu.Unlock()

	return ptr
}

// Free recovers ptr's class (or Big routing) and releases it through the
// matching path.
func (k *Heap[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	k.mu.Lock()
	class, ok := k.class[ptr]
	if ok {
		delete(k.class, ptr)
	}
	k.mu.Unlock()

	if !ok {
		return
	}

	if class < 0 {
		k.Big.Free(ptr)

		return
	}

	k.StrictSegHeap.SegHeap.Free(ptr, ClassSize(class))
}

// Realloc allocates fresh, copies min(old, new) bytes, and frees the old
// block; Kingsley's per-class bins are not grown in place.
func (k *Heap[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return k.Alloc(size)
	}

	if size == 0 {
		k.Free(ptr)

		return nil
	}

	oldSize := k.UsableSize(ptr)

	newPtr := k.Alloc(size)
	if newPtr == nil {
		return nil
	}

	copySize := oldSize
	if size < copySize {
		copySize = size
	}

	heap.CopyBytes(newPtr, ptr, copySize)
	k.Free(ptr)

	return newPtr
}

// UsableSize reports the canonical class size for a bin-routed pointer, or
// defers to Big for an oversize one.
func (k *Heap[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	k.mu.Lock()
	class, ok := k.class[ptr]
	k.mu.Unlock()

	if !ok {
		return 0
	}

	if class < 0 {
		return k.Big.UsableSize(ptr)
	}

	return ClassSize(class)
}

// Clear forgets every tracked pointer and drains the embedded StrictSegHeap.
func (k *Heap[S]) Clear() {
	k.mu.Lock()
	k.class = make(map[unsafe.Pointer]int)
	k.mu.Unlock()

	k.StrictSegHeap.Clear()
}
