package seg

import (
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// StrictSegHeap is the strict segregated-fits dispatcher (spec.md §4.4): it
// never satisfies a request from a larger class than the one the requested
// size maps to. A cache miss in the exact class falls straight through to
// Big rather than sweeping upward. Grounded on
// original_source/heaps/combining/strictsegheap.h, which builds on segheap.h
// unchanged except for malloc/free/clear.
type StrictSegHeap[S heap.Heap] struct {
	*SegHeap[S]
}

// NewStrict constructs a StrictSegHeap over the same bin array a SegHeap
// would use.
func NewStrict[S heap.Heap](super, big S, numBins int, sizeClass SizeClassFunc, classSize ClassSizeFunc) *StrictSegHeap[S] {
	return &StrictSegHeap[S]{SegHeap: New[S](super, big, numBins, sizeClass, classSize)}
}

// Alloc serves exactly the requested size's class, or Big if that class's
// cache is empty or the size exceeds every class (strictsegheap.h "malloc
// from exactly one available size").
func (s *StrictSegHeap[S]) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	class := s.sizeClass(size)
	realSize := s.classSize(class)

	if realSize >= size && realSize <= s.maxObjectSize {
		if ptr := s.bins[class].AllocCached(); ptr != nil {
			return ptr
		}
	}

	if size > s.maxObjectSize {
		return s.Big.Alloc(size)
	}

	return s.Big.Alloc(realSize)
}
