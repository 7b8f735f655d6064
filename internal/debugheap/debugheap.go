// Package debugheap implements the debugging wrapper layers (spec.md §4.6,
// "debug/canary variants"): a canary-guarded fill-on-alloc/fill-on-free
// layer and a leak tracer that records each live allocation's call stack.
// Grounded on original_source/heaps/debug/{debugheap.h,backtraceheap.h},
// with stack capture following the teacher's
// internal/allocator/allocator.go captureStackTrace/FormatLeaks pair.
package debugheap

import (
	"runtime"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

const canaryValue = 0xdeadbeef

// Canary wraps Super with a trailing guard word and byte-fill pattern on
// both alloc and free, catching writes past the end of a block and use
// beyond its lifetime (debugheap.h). Canary requires the super to report
// the real usable size it allocated (via UsableSize), since the canary
// lives in the slack between the request and that size.
type Canary[S heap.Heap] struct {
	Super S
}

// New constructs a Canary layer over super.
func New[S heap.Heap](super S) *Canary[S] {
	return &Canary[S]{Super: super}
}

// Alignment matches the super's.
func (c *Canary[S]) Alignment() uintptr {
	return c.Super.Alignment()
}

// Alloc reserves one extra machine word for the canary, fills the whole
// block with 'A', and stamps the canary at its tail.
func (c *Canary[S]) Alloc(size uintptr) unsafe.Pointer {
	wordSize := unsafe.Sizeof(uintptr(0))

	ptr := c.Super.Alloc(size + wordSize)
	if ptr == nil {
		return nil
	}

	realSize := c.Super.UsableSize(ptr)

	fill(ptr, realSize, 'A')
	c.stampCanary(ptr, realSize)

	return ptr
}

// Free verifies the canary is intact, aborting via panic if it was
// overwritten (debugheap.h calls abort(); Go code panics instead, matching
// the teacher's style of surfacing corruption as a runtime error rather
// than silently continuing), fills the block with 'F', and frees it.
func (c *Canary[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	realSize := c.Super.UsableSize(ptr)

	if !c.checkCanary(ptr, realSize) {
		panic("debugheap: heap corruption detected, canary overwritten")
	}

	fill(ptr, realSize, 'F')
	c.Super.Free(ptr)
}

// Realloc delegates to the super; the canary is re-stamped on the new block
// since its size and location may have changed.
func (c *Canary[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return c.Alloc(size)
	}

	if size == 0 {
		c.Free(ptr)

		return nil
	}

	wordSize := unsafe.Sizeof(uintptr(0))

	// Validate the outgoing block before it moves or grows.
	if realSize := c.Super.UsableSize(ptr); !c.checkCanary(ptr, realSize) {
		panic("debugheap: heap corruption detected, canary overwritten")
	}

	newPtr := c.Super.Realloc(ptr, size+wordSize)
	if newPtr == nil {
		return nil
	}

	newRealSize := c.Super.UsableSize(newPtr)
	c.stampCanary(newPtr, newRealSize)

	return newPtr
}

// UsableSize reports the caller-visible size, excluding the canary word.
func (c *Canary[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	wordSize := unsafe.Sizeof(uintptr(0))

	realSize := c.Super.UsableSize(ptr)
	if realSize < wordSize {
		return 0
	}

	return realSize - wordSize
}

// Clear delegates to the super.
func (c *Canary[S]) Clear() {
	c.Super.Clear()
}

func (c *Canary[S]) stampCanary(ptr unsafe.Pointer, realSize uintptr) {
	wordSize := unsafe.Sizeof(uintptr(0))
	if realSize < wordSize {
		return
	}

	loc := (*uintptr)(unsafe.Add(ptr, realSize-wordSize))
	*loc = canaryValue
}

func (c *Canary[S]) checkCanary(ptr unsafe.Pointer, realSize uintptr) bool {
	wordSize := unsafe.Sizeof(uintptr(0))
	if realSize < wordSize {
		return true
	}

	loc := (*uintptr)(unsafe.Add(ptr, realSize-wordSize))

	return *loc == canaryValue
}

func fill(ptr unsafe.Pointer, size uintptr, b byte) {
	if size == 0 {
		return
	}

	slice := unsafe.Slice((*byte)(ptr), size)
	for i := range slice {
		slice[i] = b
	}
}

// maxStackDepth bounds the number of program counters captured per
// allocation (backtraceheap.h's stackSize template parameter, default 16).
const maxStackDepth = 16

func captureStack() []uintptr {
	var pcs [maxStackDepth]uintptr

	n := runtime.Callers(3, pcs[:])

	return append([]uintptr(nil), pcs[:n]...)
}
