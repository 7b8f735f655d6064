// Package shim implements the process-wide interposition surface (spec.md
// §4.9): the standard allocation symbol family, routed through a composite
// while staying safe against re-entrant allocation during its own
// initialization. Grounded on spec.md §4.9/§6 directly — the teacher has no
// equivalent, since it runs inside the host Go runtime rather than
// interposing on it — using the teacher's sync.Mutex-guarded singleton
// style (internal/allocator.GlobalAllocator/Initialize) for the bootstrap
// heap and state machine.
package shim

import (
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// bootstrapSize is the static buffer's capacity: large enough to serve the
// handful of small allocations Go's runtime.Stack/runtime.Callers calls (the
// only allocations the shim itself is known to trigger) might need during
// lazy TLS-equivalent setup, never intended to hold a real workload.
const bootstrapSize = 1 << 20 // 1 MiB

// bootstrapHeap is a small static bump heap used by the shim during its own
// initialization window (spec.md §4.9: "a bump allocator over a fixed-size
// static byte buffer under an embedded mutex"). It never reclaims.
type bootstrapHeap struct {
	mu     sync.Mutex
	buf    [bootstrapSize]byte
	offset uintptr
}

var bootstrap bootstrapHeap

// bootstrapAlloc serves size bytes from the static buffer, rounded up to
// heap.NaturalAlignment, or nil if the buffer is exhausted.
func bootstrapAlloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	n := heap.AlignUp(size, heap.NaturalAlignment)
	if n == 0 {
		return nil
	}

	bootstrap.mu.Lock()
	defer bootstrap.mu.Unlock()

	if bootstrap.offset+n > bootstrapSize {
		return nil
	}

	ptr := unsafe.Pointer(&bootstrap.buf[bootstrap.offset])
	bootstrap.offset += n

	return ptr
}

// bootstrapContains reports whether ptr was handed out by bootstrapAlloc
// (spec.md §4.9's free(p) check: "if p lies within the bootstrap buffer, do
// nothing").
func bootstrapContains(ptr unsafe.Pointer) bool {
	base := uintptr(unsafe.Pointer(&bootstrap.buf[0]))
	addr := uintptr(ptr)

	return addr >= base && addr < base+bootstrapSize
}
