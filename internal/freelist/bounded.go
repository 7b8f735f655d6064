package freelist

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// Bounded caps the intrusive list at N entries; on overflow it drains all N
// entries to the super in one pass (spec.md §4.3 "An optional bounded
// variant caps the list at N entries; on overflow, drains all N entries to
// the super"). Grounded on
// original_source/heaps/buildingblock/boundedfreelistheap.h.
type Bounded[S heap.Heap] struct {
	Super     S
	classSize uintptr
	capacity  int

	mu    sync.Mutex
	head  unsafe.Pointer
	count int
}

// NewBounded constructs a Bounded freelist with room for at most capacity
// entries.
func NewBounded[S heap.Heap](super S, classSize uintptr, capacity int) *Bounded[S] {
	if classSize < unsafe.Sizeof(uintptr(0)) {
		classSize = unsafe.Sizeof(uintptr(0))
	}

	if capacity < 1 {
		capacity = 1
	}

	return &Bounded[S]{Super: super, classSize: classSize, capacity: capacity}
}

// Alignment matches the super's.
func (b *Bounded[S]) Alignment() uintptr {
	return b.Super.Alignment()
}

// Alloc pops the head of the list; if empty, delegates to the super.
func (b *Bounded[S]) Alloc(size uintptr) unsafe.Pointer {
	b.mu.Lock()
	ptr := heap.PopFront(&b.head)
	if ptr != nil {
		b.count--
	}
	b.mu.Unlock()

	if ptr != nil {
		return ptr
	}

	return b.Super.Alloc(b.classSize)
}

// Free prepends ptr to the list; if that would exceed the capacity, every
// entry currently on the list (including ptr) drains to the super instead
// (spec.md §4.3, S4 in spec.md §8).
func (b *Bounded[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	b.mu.Lock()

	if b.count >= b.capacity {
		drain := b.head
		b.head = nil
		b.count = 0
		b.mu.Unlock()

		for {
			p := heap.PopFront(&drain)
			if p == nil {
				break
			}

			b.Super.Free(p)
		}

		b.Super.Free(ptr)

		return
	}

	heap.PushFront(&b.head, ptr)
	b.count++
	b.mu.Unlock()
}

// Realloc mirrors Freelist.Realloc within this class's boundary.
func (b *Bounded[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return b.Alloc(size)
	}

	if size == 0 {
		b.Free(ptr)

		return nil
	}

	if size <= b.classSize {
		return ptr
	}

	newPtr := b.Alloc(size)
	if newPtr == nil {
		return nil
	}

	heap.CopyBytes(newPtr, ptr, b.classSize)
	b.Free(ptr)

	return newPtr
}

// UsableSize is the class's canonical size.
func (b *Bounded[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	return b.classSize
}

// Clear drains the list back to the super.
func (b *Bounded[S]) Clear() {
	b.mu.Lock()
	head := b.head
	b.head = nil
	b.count = 0
	b.mu.Unlock()

	for {
		ptr := heap.PopFront(&head)
		if ptr == nil {
			break
		}

		b.Super.Free(ptr)
	}
}

// Count returns the number of blocks currently cached on the list.
func (b *Bounded[S]) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}
