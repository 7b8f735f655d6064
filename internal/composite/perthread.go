package composite

import (
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/ansi"
	"github.com/heaplayers-go/heaplayers/internal/concurrent"
	"github.com/heaplayers-go/heaplayers/internal/header"
	"github.com/heaplayers-go/heaplayers/internal/kingsley"
)

// PerThreadFixed gives a fixed number of goroutines (spec.md §5's stand-in
// for threads) their own Kingsley instance apiece, hashed by goroutine
// identity modulo the slot count, avoiding any cross-goroutine lock on the
// hot path (original_source/heaps/threads/threadheap.h).
type PerThreadFixed struct {
	*ansi.Adapter[*concurrent.PerThread[*kingsley.Heap[topHeap]]]
}

// NewPerThreadFixed constructs a PerThreadFixed composite with cfg.ThreadSlots
// Kingsley instances (default 1 if unset).
func NewPerThreadFixed(options ...Option) *PerThreadFixed {
	cfg := resolve(options)

	n := cfg.ThreadSlots
	if n <= 0 {
		n = 1
	}

	slots := make([]*kingsley.Heap[topHeap], n)
	for i := range slots {
		top := newTopHeap(cfg)
		slots[i] = kingsley.New[topHeap](top, top)
	}

	pt := concurrent.NewPerThread[*kingsley.Heap[topHeap]](slots)

	return &PerThreadFixed{Adapter: ansi.New[*concurrent.PerThread[*kingsley.Heap[topHeap]]](pt)}
}

// lazyOwner is the per-goroutine instance PerThreadLazy's ThreadSpecific
// layer lazily creates: a Kingsley stack wrapped in an owner-tagging header
// so a block can be freed back to the instance that allocated it regardless
// of which goroutine calls Free.
type lazyOwner = *header.OwnerSizeHeader[*kingsley.Heap[topHeap]]

// crossThreadLazy layers owner-routed Free/Realloc/UsableSize over a
// ThreadSpecific[lazyOwner]: Alloc always uses the calling goroutine's own
// instance (threadspecificheap.h's usual pthread_getspecific substitute),
// but Free/Realloc/UsableSize recover the block's actual owner from its
// header (sizeownerheap.h's SizeOwnerHeap::owner) and route to that
// instance directly, so a pointer allocated by one goroutine and freed by
// another still lands on the correct subheap instead of being silently
// dropped (the limitation internal/concurrent.ThreadSpecific.Free otherwise
// documents).
type crossThreadLazy struct {
	ts *concurrent.ThreadSpecific[lazyOwner]
}

func newCrossThreadLazy(cfg *Config) *crossThreadLazy {
	cfgCopy := *cfg

	ts := concurrent.NewThreadSpecific[lazyOwner](func() lazyOwner {
		top := newTopHeap(&cfgCopy)
		k := kingsley.New[topHeap](top, top)

		return header.NewOwner[*kingsley.Heap[topHeap]](k)
	})

	return &crossThreadLazy{ts: ts}
}

func (c *crossThreadLazy) Alignment() uintptr {
	return c.ts.Own().Alignment()
}

func (c *crossThreadLazy) Alloc(size uintptr) unsafe.Pointer {
	return c.ts.Own().Alloc(size)
}

// Free recovers ptr's owning instance from its header and frees there
// directly, bypassing ThreadSpecific's usual calling-goroutine routing.
func (c *crossThreadLazy) Free(ptr unsafe.Pointer) {
	owner := c.ownerOf(ptr)
	if owner == nil {
		return
	}

	owner.Free(ptr)
}

// Realloc routes to ptr's owning instance so the new block (and its owner
// tag) stays consistent even when a different goroutine calls Realloc than
// the one that originally allocated ptr.
func (c *crossThreadLazy) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return c.Alloc(size)
	}

	if size == 0 {
		c.Free(ptr)

		return nil
	}

	owner := c.ownerOf(ptr)
	if owner == nil {
		return c.Alloc(size)
	}

	return owner.Realloc(ptr, size)
}

// UsableSize routes to ptr's owning instance, the same as Free.
func (c *crossThreadLazy) UsableSize(ptr unsafe.Pointer) uintptr {
	owner := c.ownerOf(ptr)
	if owner == nil {
		return 0
	}

	return owner.UsableSize(ptr)
}

// Clear clears every goroutine's subheap created so far.
func (c *crossThreadLazy) Clear() {
	c.ts.Clear()
}

// ownerOf recovers the lazyOwner instance that allocated ptr. headerSize is
// identical across every instance this ThreadSpecific lazily creates (it
// depends only on the shared Config, not on which goroutine's instance
// computed it), so decoding through the calling goroutine's own instance
// is always correct even when ptr belongs to a different goroutine's heap.
func (c *crossThreadLazy) ownerOf(ptr unsafe.Pointer) lazyOwner {
	if ptr == nil {
		return nil
	}

	raw := c.ts.Own().Owner(ptr)
	if raw == nil {
		return nil
	}

	return lazyOwner(raw)
}

// PerThreadLazy lazily creates one Kingsley instance per goroutine on first
// use and keeps it for the life of the process
// (original_source/heaps/threads/threadspecificheap.h, via
// internal/concurrent.ThreadSpecific's map-keyed substitute for
// pthread_key_create). Unlike a plain ThreadSpecific[Kingsley], frees are
// routed by the block's recorded owner rather than the freeing goroutine's
// own subheap (internal/header.OwnerSizeHeader).
type PerThreadLazy struct {
	*ansi.Adapter[*crossThreadLazy]
}

// NewPerThreadLazy constructs a PerThreadLazy composite.
func NewPerThreadLazy(options ...Option) *PerThreadLazy {
	cfg := resolve(options)

	return &PerThreadLazy{Adapter: ansi.New[*crossThreadLazy](newCrossThreadLazy(cfg))}
}
