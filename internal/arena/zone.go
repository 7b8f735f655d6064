package arena

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// Zone is the chunk-list arena variant (spec.md §4.2 "Zone variant"):
// chunks are held on a LIFO list, and a request larger than ChunkSize gets
// its own dedicated chunk sized exactly to the request rather than being
// split across the standard chunk size. Grounded on
// original_source/heaps/special/{bumpalloc.h,zoneheap.h}.
type Zone[S heap.Heap] struct {
	Super     S
	alignment uintptr
	chunkSize uintptr

	mu     sync.Mutex
	top    *zoneChunk
	offset uintptr // bump offset within top
}

type zoneChunk struct {
	base unsafe.Pointer
	size uintptr
	next *zoneChunk
}

// NewZone constructs a Zone layer.
func NewZone[S heap.Heap](super S, chunkSize, alignment uintptr) *Zone[S] {
	if alignment == 0 {
		alignment = heap.NaturalAlignment
	}

	return &Zone[S]{
		Super:     super,
		alignment: alignment,
		chunkSize: chunkSize,
	}
}

// Alignment is the GCD of this layer's alignment and its super's.
func (z *Zone[S]) Alignment() uintptr {
	return heap.GCD(z.alignment, z.Super.Alignment())
}

// Alloc serves size from the top chunk's remaining space, or pushes a new
// chunk (exactly size, if size exceeds ChunkSize; ChunkSize otherwise) onto
// the LIFO list.
func (z *Zone[S]) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	n := heap.AlignUp(size, z.Alignment())
	if n == 0 {
		return nil
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	if z.top != nil && z.offset+n <= z.top.size {
		ptr := unsafe.Add(z.top.base, z.offset)
		z.offset += n

		return ptr
	}

	want := z.chunkSize
	huge := n > want

	if huge {
		want = n
	}

	base := z.Super.Alloc(want)
	if base == nil {
		return nil
	}

	newChunk := &zoneChunk{base: base, size: want, next: z.top}

	if huge {
		// A huge chunk is fully consumed by this one allocation. It
		// becomes the top of the list with no room left, so the next
		// request starts a fresh chunk; the previous top's remaining
		// space is not used again.
		newChunk.next = z.top
		z.top = newChunk
		z.offset = want

		return base
	}

	z.top = newChunk
	z.offset = n

	return base
}

// Free is a no-op, as with Bump.
func (z *Zone[S]) Free(ptr unsafe.Pointer) {}

// Realloc always allocates a fresh block and copies no content; Zone does
// not track per-block sizes (spec.md §4.2 leaves Realloc to higher layers).
func (z *Zone[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return z.Alloc(size)
	}

	if size == 0 {
		return nil
	}

	return z.Alloc(size)
}

// UsableSize is unsupported at this layer; see Bump.UsableSize.
func (z *Zone[S]) UsableSize(ptr unsafe.Pointer) uintptr { return 0 }

// Clear releases every chunk back to the super, most-recently-acquired
// first (spec.md §3 "Arena record": "the arena list is LIFO and is
// released en masse on clear/teardown").
func (z *Zone[S]) Clear() {
	z.mu.Lock()
	c := z.top
	z.top = nil
	z.offset = 0
	z.mu.Unlock()

	for c != nil {
		z.Super.Free(c.base)
		c = c.next
	}
}
