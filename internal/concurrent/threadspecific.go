package concurrent

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// ThreadSpecific lazily creates one subheap per goroutine on first use
// (threadspecificheap.h's pthread_once/pthread_getspecific pair), keyed by
// goroutineID in place of a real TLS slot (SPEC_FULL.md §A). Unlike the C++
// original, a goroutine's subheap is never destroyed when the goroutine
// exits — Go has no equivalent of pthread_key_create's destructor callback
// — so long-lived programs that spawn many short-lived goroutines should
// prefer PerThread's fixed slot count instead.
type ThreadSpecific[T heap.Heap] struct {
	newHeap func() T

	mu    sync.Mutex
	heaps map[uint64]T
}

// NewThreadSpecific constructs a ThreadSpecific layer; newHeap is called at
// most once per distinct goroutine identity observed.
func NewThreadSpecific[T heap.Heap](newHeap func() T) *ThreadSpecific[T] {
	return &ThreadSpecific[T]{
		newHeap: newHeap,
		heaps:   make(map[uint64]T),
	}
}

func (t *ThreadSpecific[T]) own() T {
	id := goroutineID()

	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.heaps[id]
	if !ok {
		h = t.newHeap()
		t.heaps[id] = h
	}

	return h
}

// Own exposes the calling goroutine's own subheap (creating it if
// necessary), for callers that need to route a free by the block's actual
// owner rather than by the calling goroutine's identity — e.g. a header
// layer above this one that tags each block with the instance that
// allocated it.
func (t *ThreadSpecific[T]) Own() T {
	return t.own()
}

// Alignment instantiates (if needed) and asks the calling goroutine's heap.
func (t *ThreadSpecific[T]) Alignment() uintptr {
	return t.own().Alignment()
}

// Alloc serves from the calling goroutine's own subheap.
func (t *ThreadSpecific[T]) Alloc(size uintptr) unsafe.Pointer {
	return t.own().Alloc(size)
}

// Free returns ptr to the calling goroutine's own subheap (threadspecificheap.h:
// a goroutine with no subheap yet silently drops the free, matching the
// original's "if (heap) heap->free(ptr)" guard). This routes by the
// *freeing* goroutine's identity, not the block's actual owner — a caller
// that needs a pointer freed by a different goroutine than the one that
// allocated it should route through Own() and an owner-tagging header
// layer instead (internal/header.OwnerSizeHeader, wired into
// internal/composite.PerThreadLazy).
func (t *ThreadSpecific[T]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	id := goroutineID()

	t.mu.Lock()
	h, ok := t.heaps[id]
	t.mu.Unlock()

	if !ok {
		return
	}

	h.Free(ptr)
}

// Realloc delegates to the calling goroutine's own subheap.
func (t *ThreadSpecific[T]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return t.own().Realloc(ptr, size)
}

// UsableSize delegates to the calling goroutine's own subheap.
func (t *ThreadSpecific[T]) UsableSize(ptr unsafe.Pointer) uintptr {
	return t.own().UsableSize(ptr)
}

// Clear clears every goroutine's subheap created so far.
func (t *ThreadSpecific[T]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, h := range t.heaps {
		h.Clear()
	}
}
