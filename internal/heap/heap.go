// Package heap defines the layer contract every Heap Layers building block
// composes against, plus the small set of helpers (alignment arithmetic,
// bit utilities, intrusive list nodes) leaf layers need.
package heap

import (
	"sync"
	"unsafe"
)

// NaturalAlignment is the stricter of the platform's max-align-t-equivalent
// and 16 bytes (spec.md §9 Open Questions: "choose the stricter of the two").
const NaturalAlignment = 16

// MaxSize is the largest allocation request any layer will honor. Requests
// whose size would overflow past half the address space are rejected by the
// ANSI adapter per spec.md §4.8 before reaching any super.
const MaxSize = ^uintptr(0) >> 1

// Heap is the interface every layer implements and every layer's Super
// parameter is constrained to. A layer inherits its super's behavior for any
// method it does not override (spec.md §2, "Composition rule").
type Heap interface {
	// Alloc returns a pointer to usable memory of at least size bytes, or
	// nil on failure. Alloc never panics and never mutates state on failure.
	Alloc(size uintptr) unsafe.Pointer

	// Free returns ptr to the heap. Free(nil) is a no-op.
	Free(ptr unsafe.Pointer)

	// Realloc resizes the allocation at ptr to size bytes, preserving
	// min(old usable size, size) bytes of content, and returns the new
	// pointer (which may equal ptr).
	Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer

	// UsableSize returns the usable size of the block containing ptr.
	UsableSize(ptr unsafe.Pointer) uintptr

	// Alignment returns the alignment this heap's public pointers honor.
	Alignment() uintptr

	// Clear releases all memory held by the heap back to its super, where
	// the layer supports bulk release; layers that cannot (most freelists
	// alone) delegate to their super's Clear.
	Clear()
}

// Locker is implemented by concurrency layers that can be quiesced for
// fork safety (spec.md §5, "Fork safety"). A composite-wide Lock acquires
// every lock layer's mutex in a fixed (outer-to-inner) order; Unlock
// releases in reverse.
type Locker interface {
	Lock()
	Unlock()
}

// GCD returns the greatest common divisor of a and b. A layer's declared
// alignment equals the GCD of its own alignment constraint and its super's
// declared alignment (spec.md §2).
func GCD(a, b uintptr) uintptr {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

// LCM returns the least common multiple of a and b. Object-representation
// header layers size their header at lcm(super alignment, header struct
// alignment) so the user pointer that follows the header stays aligned to
// both (spec.md §3, "Header sizing").
func LCM(a, b uintptr) uintptr {
	if a == 0 || b == 0 {
		return 0
	}

	return a / GCD(a, b) * b
}

// AlignUp rounds size up to the nearest multiple of alignment, which must be
// a power of two. Returns 0 on overflow.
func AlignUp(size, alignment uintptr) uintptr {
	if alignment == 0 {
		return size
	}

	aligned := (size + alignment - 1) &^ (alignment - 1)
	if aligned < size {
		return 0 // overflow
	}

	return aligned
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n > 0 && n&(n-1) == 0
}

// OverflowsHalfAddressSpace reports whether n has its top bit set, i.e. the
// request cannot possibly be satisfied (spec.md §4.8, §8 property 9).
func OverflowsHalfAddressSpace(n uintptr) bool {
	return n > MaxSize
}

// CopyBytes copies size bytes from src to dst using raw byte slices. It is
// the one place in the toolkit that reaches for unsafe slice construction to
// move memory the stdlib otherwise has no typed way to touch.
func CopyBytes(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 || dst == nil || src == nil {
		return
	}

	dstSlice := unsafe.Slice((*byte)(dst), size)
	srcSlice := unsafe.Slice((*byte)(src), size)
	copy(dstSlice, srcSlice)
}

// Once enforces single construction of a process-scoped composite
// (SPEC_FULL.md §D.4, grounded on
// original_source/heaps/special/nestedheap.h and
// heaps/utility/uniqueheap.h's "exactly one instance" guard). A second call
// to Get after the first returns the same instance; newFn never runs twice.
type Once[T any] struct {
	once sync.Once
	val  T
}

// Get returns the single instance, constructing it with newFn on the first
// call and every later call returning that same value.
func (o *Once[T]) Get(newFn func() T) T {
	o.once.Do(func() {
		o.val = newFn()
	})

	return o.val
}

// ZeroBytes zero-fills size bytes starting at ptr.
func ZeroBytes(ptr unsafe.Pointer, size uintptr) {
	if size == 0 || ptr == nil {
		return
	}

	slice := unsafe.Slice((*byte)(ptr), size)
	for i := range slice {
		slice[i] = 0
	}
}
