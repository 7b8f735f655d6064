package concurrent

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// bufSlot is one goroutine's buffer of pending frees. In steady state it is
// only ever touched by the goroutine that owns it, so mu is uncontended;
// it exists only to stay safe against Clear (or another goroutine that
// happens to reuse the same id) draining the slot concurrently.
type bufSlot struct {
	mu  sync.Mutex
	buf []unsafe.Pointer
}

// BufferedLocked batches up to bufferSize frees per goroutine before taking
// superMu to drain them to Super in one pass, amortizing lock contention on
// Super to roughly 1/bufferSize (bufferedlockedheap.h). The C++ original
// keys its buffer off __thread storage; since Go exposes no goroutine-local
// storage, this substitutes a slot per goroutineID (SPEC_FULL.md §A),
// looked up through a sync.Map so appending to one's own slot never
// contends with another goroutine's append — only a drain to Super takes
// the shared lock. A slot is created on a goroutine's first Free and stays
// in the map after that goroutine exits; Clear drains every slot's pending
// frees but does not remove the slots.
type BufferedLocked[S heap.Heap] struct {
	Super      S
	bufferSize int

	superMu sync.Mutex // guards every access to Super
	slots   sync.Map   // uint64 -> *bufSlot
}

// NewBuffered constructs a BufferedLocked layer batching up to bufferSize frees per
// goroutine before draining.
func NewBuffered[S heap.Heap](super S, bufferSize int) *BufferedLocked[S] {
	if bufferSize < 1 {
		bufferSize = 1
	}

	return &BufferedLocked[S]{
		Super:      super,
		bufferSize: bufferSize,
	}
}

// Alignment matches the super's.
func (b *BufferedLocked[S]) Alignment() uintptr {
	return b.Super.Alignment()
}

// Alloc takes superMu and delegates; a retry after draining every buffer
// handles the case where Super is itself buffer-backed and momentarily out
// of memory until frees are flushed (bufferedlockedheap.h's malloc retry).
func (b *BufferedLocked[S]) Alloc(size uintptr) unsafe.Pointer {
	b.superMu.Lock()
	defer b.superMu.Unlock()

	if ptr := b.Super.Alloc(size); ptr != nil {
		return ptr
	}

	b.drainAllLocked()

	return b.Super.Alloc(size)
}

// Free appends ptr to the calling goroutine's own slot without touching
// superMu, draining that slot to Super (under superMu) once it reaches
// bufferSize.
func (b *BufferedLocked[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	slot := b.slot(goroutineID())

	slot.mu.Lock()
	slot.buf = append(slot.buf, ptr)

	var drain []unsafe.Pointer

	if len(slot.buf) >= b.bufferSize {
		drain = slot.buf
		slot.buf = nil
	}
	slot.mu.Unlock()

	if drain == nil {
		return
	}

	b.superMu.Lock()
	for _, p := range drain {
		b.Super.Free(p)
	}
	b.superMu.Unlock()
}

// Realloc delegates directly under superMu; buffering only applies to Free.
func (b *BufferedLocked[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	b.superMu.Lock()
	defer b.superMu.Unlock()

	return b.Super.Realloc(ptr, size)
}

// UsableSize delegates under superMu.
func (b *BufferedLocked[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	b.superMu.Lock()
	defer b.superMu.Unlock()

	return b.Super.UsableSize(ptr)
}

// Clear drains every goroutine's slot, then forwards to Super.
func (b *BufferedLocked[S]) Clear() {
	b.superMu.Lock()
	b.drainAllLocked()
	b.superMu.Unlock()

	b.Super.Clear()
}

// Lock acquires superMu for composite-wide quiesce (spec.md §5).
func (b *BufferedLocked[S]) Lock() {
	b.superMu.Lock()
}

// Unlock releases superMu.
func (b *BufferedLocked[S]) Unlock() {
	b.superMu.Unlock()
}

// slot returns (creating if necessary) the calling goroutine's buffer slot.
func (b *BufferedLocked[S]) slot(id uint64) *bufSlot {
	if v, ok := b.slots.Load(id); ok {
		return v.(*bufSlot)
	}

	actual, _ := b.slots.LoadOrStore(id, &bufSlot{})

	return actual.(*bufSlot)
}

// drainAllLocked drains every slot to Super. Callers must hold superMu.
func (b *BufferedLocked[S]) drainAllLocked() {
	b.slots.Range(func(_, value any) bool {
		slot := value.(*bufSlot)

		slot.mu.Lock()
		buf := slot.buf
		slot.buf = nil
		slot.mu.Unlock()

		for _, p := range buf {
			b.Super.Free(p)
		}

		return true
	})
}
