package header

import (
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

type ownerTag struct {
	size  uintptr
	owner unsafe.Pointer
}

// OwnerSizeHeader extends SizeHeader with an owner pointer (the composite
// that allocated the block), letting a multi-heap deallocation path route
// free() back to the right instance without a side table (spec.md §4.6,
// grounded on original_source/heaps/objectrep/sizeownerheap.h's
// SizeOwnerHeap).
type OwnerSizeHeader[S heap.Heap] struct {
	Super      S
	headerSize uintptr
}

// NewOwner constructs an OwnerSizeHeader layer over super.
func NewOwner[S heap.Heap](super S) *OwnerSizeHeader[S] {
	return &OwnerSizeHeader[S]{
		Super:      super,
		headerSize: heap.LCM(super.Alignment(), unsafe.Alignof(ownerTag{})),
	}
}

// Alignment equals the super's.
func (h *OwnerSizeHeader[S]) Alignment() uintptr {
	return h.Super.Alignment()
}

// Alloc reserves space for the owner tag ahead of the request and records
// owner as the allocating instance.
func (h *OwnerSizeHeader[S]) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	base := h.Super.Alloc(size + h.headerSize)
	if base == nil {
		return nil
	}

	tag := (*ownerTag)(base)
	tag.size = size
	tag.owner = unsafe.Pointer(h)

	return unsafe.Add(base, h.headerSize)
}

// Free recovers the header from ptr and frees the whole block.
func (h *OwnerSizeHeader[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h.Super.Free(h.base(ptr))
}

// Realloc behaves like SizeHeader.Realloc, preserving min(old, new) bytes.
func (h *OwnerSizeHeader[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
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
func (h *OwnerSizeHeader[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	return h.tag(ptr).size
}

// Clear forwards to the super.
func (h *OwnerSizeHeader[S]) Clear() {
	h.Super.Clear()
}

// Owner returns the OwnerSizeHeader instance that allocated ptr, as an
// opaque pointer the caller compares for identity (sizeownerheap.h's
// SizeOwnerHeap::owner).
func (h *OwnerSizeHeader[S]) Owner(ptr unsafe.Pointer) unsafe.Pointer {
	return h.tag(ptr).owner
}

func (h *OwnerSizeHeader[S]) base(ptr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(ptr, -int(h.headerSize))
}

func (h *OwnerSizeHeader[S]) tag(ptr unsafe.Pointer) *ownerTag {
	return (*ownerTag)(h.base(ptr))
}
