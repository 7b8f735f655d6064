package concurrent

import (
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// PerThread comprises numHeaps fixed subheaps (threadheap.h): the calling
// goroutine's identity is hashed mod numHeaps to pick which subheap serves
// it. Callers supply subheaps that already lock themselves (threadheap.h's
// "we assume that the thread heaps are locked as needed") — typically a
// Locked[T] per slot.
type PerThread[T heap.Heap] struct {
	heaps []T
}

// NewPerThread constructs a PerThread layer over a pre-built slice of
// subheaps, one per slot.
func NewPerThread[T heap.Heap](heaps []T) *PerThread[T] {
	return &PerThread[T]{heaps: heaps}
}

func (p *PerThread[T]) slot() T {
	return p.heaps[goroutineID()%uint64(len(p.heaps))]
}

// Alignment is shared across every slot by construction; the first slot's
// value stands in for all of them.
func (p *PerThread[T]) Alignment() uintptr {
	return p.heaps[0].Alignment()
}

// Alloc dispatches to the calling goroutine's hashed slot.
func (p *PerThread[T]) Alloc(size uintptr) unsafe.Pointer {
	return p.slot().Alloc(size)
}

// Free dispatches to the calling goroutine's hashed slot (threadheap.h: an
// object is returned to whichever slot the *freeing* goroutine hashes to,
// not necessarily the one that allocated it).
func (p *PerThread[T]) Free(ptr unsafe.Pointer) {
	p.slot().Free(ptr)
}

// Realloc dispatches to the calling goroutine's hashed slot.
func (p *PerThread[T]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return p.slot().Realloc(ptr, size)
}

// UsableSize dispatches to the calling goroutine's hashed slot.
func (p *PerThread[T]) UsableSize(ptr unsafe.Pointer) uintptr {
	return p.slot().UsableSize(ptr)
}

// Clear clears every slot.
func (p *PerThread[T]) Clear() {
	for _, h := range p.heaps {
		h.Clear()
	}
}

// NumHeaps is the number of fixed slots.
func (p *PerThread[T]) NumHeaps() int {
	return len(p.heaps)
}
