// Package header implements the object-representation header layers
// (spec.md §4.6): place a small struct immediately before each returned
// pointer to carry metadata the layers beneath can't recover on their own,
// most importantly the block's requested size. Grounded on
// original_source/heaps/objectrep/{headerheap.h,sizeheap.h,sizeownerheap.h}.
package header

import (
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

type sizeTag struct {
	size uintptr
}

// SizeHeader prepends a size tag to every allocation, letting UsableSize and
// Realloc answer precisely without help from the super (spec.md §4.6, S2
// scenario). HeaderSize is lcm(super alignment, tag alignment) so the
// returned pointer keeps the super's alignment guarantee (spec.md §3,
// "Header sizing").
type SizeHeader[S heap.Heap] struct {
	Super      S
	headerSize uintptr
}

// New constructs a SizeHeader layer over super.
func New[S heap.Heap](super S) *SizeHeader[S] {
	return &SizeHeader[S]{
		Super:      super,
		headerSize: heap.LCM(super.Alignment(), unsafe.Alignof(sizeTag{})),
	}
}

// Alignment equals the super's: the header's own offset is absorbed into
// headerSize, so it never tightens what the super already guarantees.
func (h *SizeHeader[S]) Alignment() uintptr {
	return h.Super.Alignment()
}

// Alloc reserves headerSize extra bytes ahead of the request, stashes size
// in them, and returns a pointer just past the header.
func (h *SizeHeader[S]) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	base := h.Super.Alloc(size + h.headerSize)
	if base == nil {
		return nil
	}

	tag := (*sizeTag)(base)
	tag.size = size

	return unsafe.Add(base, h.headerSize)
}

// Free recovers the header from ptr and frees the whole block.
func (h *SizeHeader[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h.Super.Free(h.base(ptr))
}

// Realloc allocates a new tagged block, copies min(old, new) size bytes, and
// frees the old one (spec.md §8 property 1: content is preserved up to the
// smaller of the two sizes).
func (h *SizeHeader[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return h.Alloc(size)
	}

	if size == 0 {
		h.Free(ptr)

		return nil
	}

	oldSize := h.UsableSize(ptr)

	newPtr := h.Alloc(size)
	if newPtr == nil {
		return nil
	}

	copySize := oldSize
	if size < copySize {
		copySize = size
	}

	heap.CopyBytes(newPtr, ptr, copySize)
	h.Free(ptr)

	return newPtr
}

// UsableSize reads the requested size back out of ptr's header.
func (h *SizeHeader[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	return h.tag(ptr).size
}

// Clear forwards to the super.
func (h *SizeHeader[S]) Clear() {
	h.Super.Clear()
}

// HeaderSize is the number of bytes reserved ahead of every returned
// pointer.
func (h *SizeHeader[S]) HeaderSize() uintptr {
	return h.headerSize
}

func (h *SizeHeader[S]) base(ptr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(ptr, -int(h.headerSize))
}

func (h *SizeHeader[S]) tag(ptr unsafe.Pointer) *sizeTag {
	return (*sizeTag)(h.base(ptr))
}
