// Package concurrent implements the concurrency layers (spec.md §4.7):
// mutex-wrapped, batched-free, and per-thread/goroutine sharded heaps.
// Grounded on original_source/heaps/threads/{lockedheap.h,
// bufferedlockedheap.h,threadheap.h,threadspecificheap.h}, with goroutine
// identity substituting for pthread_self() throughout.
package concurrent

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// Locked serializes every operation on Super behind a single mutex
// (lockedheap.h). It also implements heap.Locker so a composite-wide quiesce
// can acquire it in a fixed order (spec.md §5, "Fork safety").
type Locked[S heap.Heap] struct {
	Super S
	mu    sync.Mutex
}

// New wraps super with a single global lock.
func New[S heap.Heap](super S) *Locked[S] {
	return &Locked[S]{Super: super}
}

// Alignment matches the super's; no lock needed, it never changes.
func (l *Locked[S]) Alignment() uintptr {
	return l.Super.Alignment()
}

// Alloc delegates under the lock.
func (l *Locked[S]) Alloc(size uintptr) unsafe.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.Super.Alloc(size)
}

// Free delegates under the lock.
func (l *Locked[S]) Free(ptr unsafe.Pointer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Super.Free(ptr)
}

// Realloc delegates under the lock.
func (l *Locked[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.Super.Realloc(ptr, size)
}

// UsableSize delegates under the lock.
func (l *Locked[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.Super.UsableSize(ptr)
}

// Clear delegates under the lock.
func (l *Locked[S]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Super.Clear()
}

// Lock acquires the layer's mutex without performing an operation, for
// composite-wide quiesce (spec.md §5).
func (l *Locked[S]) Lock() {
	l.mu.Lock()
}

// Unlock releases the layer's mutex.
func (l *Locked[S]) Unlock() {
	l.mu.Unlock()
}
