// Package arena implements the bump/arena category of layer (spec.md §4.2):
// carve large chunks from a super heap and serve allocations as contiguous
// slices of the current chunk, never reclaiming individual blocks.
package arena

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

type chunk struct {
	base unsafe.Pointer
	size uintptr
	used uintptr
}

// Bump is the arena/bump layer, grounded on
// internal/allocator/arena.go's ArenaAllocatorImpl (bump pointer, peak
// usage, Reset) generalized to acquire successive chunks from an arbitrary
// super rather than a single fixed buffer, per spec.md §4.2.
type Bump[S heap.Heap] struct {
	Super     S
	alignment uintptr
	chunkSize uintptr

	mu         sync.Mutex
	chunks     []chunk
	cur        int // index into chunks of the chunk currently being bumped, -1 if none
	allocated  uintptr
	lastPtr    unsafe.Pointer
	lastOffset uintptr // offset of lastPtr's chunk's used marker before the last alloc
}

// New constructs a Bump layer. chunkSize must be a multiple of alignment and
// at least alignment (spec.md §4.2 invariant). alignment is this layer's own
// alignment constraint, before combining with the super's via GCD.
func New[S heap.Heap](super S, chunkSize, alignment uintptr) (*Bump[S], error) {
	if alignment == 0 {
		alignment = heap.NaturalAlignment
	}

	if chunkSize == 0 || chunkSize%alignment != 0 {
		return nil, fmt.Errorf("arena: chunkSize %d must be a non-zero multiple of alignment %d", chunkSize, alignment)
	}

	return &Bump[S]{
		Super:     super,
		alignment: alignment,
		chunkSize: chunkSize,
		cur:       -1,
	}, nil
}

// Alignment is the GCD of this layer's own constraint and its super's
// declared alignment (spec.md §2 "Composition rule").
func (b *Bump[S]) Alignment() uintptr {
	return heap.GCD(b.alignment, b.Super.Alignment())
}

// Alloc rounds size up to the declared alignment, then either returns the
// next slice of the current chunk or acquires a new chunk from the super
// (spec.md §4.2).
func (b *Bump[S]) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	n := heap.AlignUp(size, b.Alignment())
	if n == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cur >= 0 {
		c := &b.chunks[b.cur]
		if c.used+n <= c.size {
			ptr := unsafe.Add(c.base, c.used)
			b.lastOffset = c.used
			c.used += n
			b.allocated += n
			b.lastPtr = ptr

			return ptr
		}
	}

	want := b.chunkSize
	if n > want {
		want = n
	}

	base := b.Super.Alloc(want)
	if base == nil {
		return nil
	}

	b.chunks = append(b.chunks, chunk{base: base, size: want, used: n})
	b.cur = len(b.chunks) - 1
	b.allocated += n
	b.lastOffset = 0
	b.lastPtr = base

	return base
}

// Free is a no-op: the arena never reclaims individual allocations
// (spec.md §4.2).
func (b *Bump[S]) Free(ptr unsafe.Pointer) {}

// Realloc grows or shrinks ptr in place when ptr is the most recent
// allocation out of the current chunk and the chunk has room (the
// XallocHeap-style fast path from SPEC_FULL.md §D.2); otherwise it
// allocates a fresh block and leaves the old block stranded (the arena
// cannot reclaim it individually). The fallback copies no content: Bump
// keeps no per-block size, so copying is left to a layer above it.
func (b *Bump[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return b.Alloc(size)
	}

	if size == 0 {
		return nil
	}

	n := heap.AlignUp(size, b.Alignment())
	if n == 0 {
		return nil
	}

	b.mu.Lock()
	if b.cur >= 0 && b.lastPtr == ptr {
		c := &b.chunks[b.cur]
		if b.lastOffset+n <= c.size {
			b.allocated += n - (c.used - b.lastOffset)
			c.used = b.lastOffset + n
			b.mu.Unlock()

			return ptr
		}
	}
	b.mu.Unlock()

	newPtr := b.Alloc(size)
	if newPtr == nil {
		return nil
	}

	return newPtr
}

// UsableSize is not tracked per-block by the bump layer; an
// object-representation header layer above it is responsible for answering
// spec.md §8 property 1 precisely.
func (b *Bump[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	return 0
}

// Clear releases every chunk back to the super and resets bookkeeping
// (spec.md §4.2). Idempotent.
func (b *Bump[S]) Clear() {
	b.mu.Lock()
	chunks := b.chunks
	b.chunks = nil
	b.cur = -1
	b.allocated = 0
	b.lastPtr = nil
	b.lastOffset = 0
	b.mu.Unlock()

	for _, c := range chunks {
		b.Super.Free(c.base)
	}
}

// Allocated returns the total number of bytes handed out so far.
func (b *Bump[S]) Allocated() uintptr {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.allocated
}

// LastBlock returns the pointer of the most recent allocation and whether
// one exists, letting an ANSI adapter above this layer opt into in-place
// growth (SPEC_FULL.md §D.2).
func (b *Bump[S]) LastBlock() (unsafe.Pointer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.lastPtr, b.lastPtr != nil
}
