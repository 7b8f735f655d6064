// Package seg implements the segregated-fits family of combining layers
// (spec.md §4.4): an array of same-shaped "little" subheaps, one per size
// class, dispatched through a bin bitmap, with a "big" heap fallback for
// objects above the largest class. Grounded on
// original_source/heaps/combining/{segheap.h,strictsegheap.h}.
package seg

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/freelist"
	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// SizeClassFunc maps a requested size to the smallest size class that can
// satisfy it.
type SizeClassFunc func(size uintptr) int

// ClassSizeFunc maps a size class back to that class's canonical (maximum)
// size.
type ClassSizeFunc func(class int) uintptr

// SegHeap is the lenient segregated-fits dispatcher (spec.md §4.4): a miss in
// the requested class's bin sweeps the bitmap upward to the next non-empty
// class rather than failing outright, and never splits the oversized block
// it finds (SPEC_FULL.md Open Question resolution, DESIGN.md). Objects
// larger than the biggest class go straight to Big.
type SegHeap[S heap.Heap] struct {
	Super S // the shared backing heap every bin's freelist allocates from
	Big   S // the overflow heap for objects above the largest class

	numBins       int
	sizeClass     SizeClassFunc
	classSize     ClassSizeFunc
	maxObjectSize uintptr

	bins   []*freelist.Freelist[S]
	binmap *heap.Bitmap

	// binmu guards binmap only; each bin's own freelist already serializes
	// its push/pop, but the bitmap word a Set/Clear/NextSet touches is
	// shared across every class and is not itself atomic (spec.md §8
	// property 7, property 10: concurrent callers must never observe a
	// torn bitmap word).
	binmu sync.Mutex
}

// New constructs a SegHeap with numBins classes, using sizeClass/classSize to
// map sizes to classes and back. super backs every class's freelist; big
// backs the overflow path. (spec.md §4.4 lets Super and Big be the same heap
// when a caller doesn't need them separated: pass the same value for both.)
func New[S heap.Heap](super, big S, numBins int, sizeClass SizeClassFunc, classSize ClassSizeFunc) *SegHeap[S] {
	bins := make([]*freelist.Freelist[S], numBins)
	for i := range bins {
		bins[i] = freelist.New[S](super, classSize(i))
	}

	return &SegHeap[S]{
		Super:         super,
		Big:           big,
		numBins:       numBins,
		sizeClass:     sizeClass,
		classSize:     classSize,
		maxObjectSize: classSize(numBins - 1),
		bins:          bins,
		binmap:        heap.NewBitmap(numBins),
	}
}

// Alignment is the GCD of the bin freelists' and the big heap's alignments.
func (s *SegHeap[S]) Alignment() uintptr {
	return heap.GCD(s.Super.Alignment(), s.Big.Alignment())
}

// Alloc dispatches to the requested class's bin; on a miss it sweeps the
// bitmap for the next larger non-empty class, taking that block as-is
// (spec.md §4.4's lenient variant does not split). Above the largest class,
// or when every bin is empty, it falls through to Big.
func (s *SegHeap[S]) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if size > s.maxObjectSize {
		return s.Big.Alloc(size)
	}

	class := s.sizeClass(size)

	for idx := class; idx >= 0 && idx < s.numBins; {
		s.binmu.Lock()
		next := s.binmap.NextSet(idx)
		s.binmu.Unlock()

		if next < 0 || next >= s.numBins {
			break
		}

		ptr := s.bins[next].AllocCached()
		if ptr != nil {
			return ptr
		}

		// The bin's cache was empty; the bit was stale (another goroutine
		// may have drained it first). Clear it and continue the sweep
		// (segheap.h's "write through" on a miss).
		s.binmu.Lock()
		s.binmap.Clear(next)
		s.binmu.Unlock()

		idx = next + 1
	}

	return s.Big.Alloc(size)
}

// Free routes ptr to the bin whose class-size matches the requested
// objectSize, rounding down to the nearest class that still covers it
// (spec.md §4.4 "Free-path classification").
func (s *SegHeap[S]) Free(ptr unsafe.Pointer, objectSize uintptr) {
	if ptr == nil {
		return
	}

	if objectSize > s.maxObjectSize {
		s.Big.Free(ptr)

		return
	}

	class := s.sizeClass(objectSize)
	for class > 0 && s.classSize(class) > objectSize {
		class--
	}

	s.bins[class].Free(ptr)

	s.binmu.Lock()
	s.binmap.Set(class)
	s.binmu.Unlock()
}

// UsableSize reports the canonical size of the class ptr's size would
// classify into; callers without a known objectSize should prefer an
// object-representation header layer above SegHeap for precise answers.
func (s *SegHeap[S]) UsableSize(size uintptr) uintptr {
	if size > s.maxObjectSize {
		return size
	}

	return s.classSize(s.sizeClass(size))
}

// Clear drains every bin and the big heap back to their supers.
func (s *SegHeap[S]) Clear() {
	for _, bin := range s.bins {
		bin.Clear()
	}

	s.binmu.Lock()
	s.binmap.Reset()
	s.binmu.Unlock()

	s.Big.Clear()
}

// NumBins is the number of size classes this SegHeap dispatches across.
func (s *SegHeap[S]) NumBins() int {
	return s.numBins
}

// MaxObjectSize is the largest size the bin array itself can satisfy before
// falling through to Big.
func (s *SegHeap[S]) MaxObjectSize() uintptr {
	return s.maxObjectSize
}
