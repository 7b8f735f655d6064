package debugheap

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// traceObj records one live allocation's call stack. It is a plain
// Go-managed object (not overlaid on the allocated block itself, since the
// block's memory is not guaranteed to be scanned by the garbage collector
// and must not hold live Go pointers) linked into Tracer's DList so an
// individual entry can be unlinked in O(1) on free
// (original_source/heaps/debug/backtraceheap.h's TraceObj/link/unlink).
type traceObj struct {
	node  heap.DNode
	ptr   unsafe.Pointer
	size  uintptr
	stack []uintptr
}

// LeakInfo describes one allocation still live when CheckLeaks is called.
type LeakInfo struct {
	Pointer    unsafe.Pointer
	Size       uintptr
	StackTrace []uintptr
}

// Tracer wraps Super, recording a call stack for every live allocation so
// that leaks can be listed and formatted at any later point
// (backtraceheap.h's print_leaks/clear_leaks, in the idiom of the teacher's
// CheckLeaks/FormatLeaks pair).
type Tracer[S heap.Heap] struct {
	Super S

	mu      sync.Mutex
	objects heap.DList
	byPtr   map[unsafe.Pointer]*traceObj
}

// NewTracer constructs a Tracer over super.
func NewTracer[S heap.Heap](super S) *Tracer[S] {
	t := &Tracer[S]{
		Super: super,
		byPtr: make(map[unsafe.Pointer]*traceObj),
	}
	t.objects.Init()

	return t
}

// Alignment matches the super's.
func (t *Tracer[S]) Alignment() uintptr {
	return t.Super.Alignment()
}

// Alloc records the allocation's size and call stack before returning it.
func (t *Tracer[S]) Alloc(size uintptr) unsafe.Pointer {
	ptr := t.Super.Alloc(size)
	if ptr == nil {
		return nil
	}

	obj := &traceObj{ptr: ptr, size: size, stack: captureStack()}

	t.mu.Lock()
	t.objects.PushBack(&obj.node)
	t.byPtr[ptr] = obj
	t.mu.Unlock()

	return ptr
}

// Free forgets the traced entry for ptr, if any, and frees the block.
func (t *Tracer[S]) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	t.mu.Lock()
	if obj, ok := t.byPtr[ptr]; ok {
		t.objects.Remove(&obj.node)
		delete(t.byPtr, ptr)
	}
	t.mu.Unlock()

	t.Super.Free(ptr)
}

// Realloc re-traces the block under its (possibly new) address and size.
func (t *Tracer[S]) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return t.Alloc(size)
	}

	if size == 0 {
		t.Free(ptr)

		return nil
	}

	t.mu.Lock()
	if obj, ok := t.byPtr[ptr]; ok {
		t.objects.Remove(&obj.node)
		delete(t.byPtr, ptr)
	}
	t.mu.Unlock()

	newPtr := t.Super.Realloc(ptr, size)
	if newPtr == nil {
		return nil
	}

	obj := &traceObj{ptr: newPtr, size: size, stack: captureStack()}

	t.mu.Lock()
	t.objects.PushBack(&obj.node)
	t.byPtr[newPtr] = obj
	t.mu.Unlock()

	return newPtr
}

// UsableSize delegates to the super.
func (t *Tracer[S]) UsableSize(ptr unsafe.Pointer) uintptr {
	return t.Super.UsableSize(ptr)
}

// Clear forgets every traced entry and delegates to the super
// (backtraceheap.h's clear_leaks).
func (t *Tracer[S]) Clear() {
	t.mu.Lock()
	t.objects.Init()
	t.byPtr = make(map[unsafe.Pointer]*traceObj)
	t.mu.Unlock()

	t.Super.Clear()
}

// CheckLeaks returns a LeakInfo for every allocation still live
// (backtraceheap.h's print_leaks, renamed in the teacher's style).
func (t *Tracer[S]) CheckLeaks() []LeakInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	var leaks []LeakInfo

	t.objects.Each(func(n *heap.DNode) {
		obj := (*traceObj)(unsafe.Pointer(n))
		leaks = append(leaks, LeakInfo{
			Pointer:    obj.ptr,
			Size:       obj.size,
			StackTrace: obj.stack,
		})
	})

	return leaks
}

// FormatLeaks renders each leak's pointer, size, and call stack as
// "file:line function" lines, in the teacher's FormatLeaks style.
func FormatLeaks(leaks []LeakInfo) string {
	var b strings.Builder

	for _, leak := range leaks {
		fmt.Fprintf(&b, "leak: %p (%d bytes)\n", leak.Pointer, leak.Size)

		frames := runtime.CallersFrames(leak.StackTrace)
		for {
			frame, more := frames.Next()

			fmt.Fprintf(&b, "\t%s:%d %s\n", frame.File, frame.Line, frame.Function)

			if !more {
				break
			}
		}
	}

	return b.String()
}
