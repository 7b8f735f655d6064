package debugheap

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/header"
	"github.com/heaplayers-go/heaplayers/internal/source"
)

// The fixtures sit on a SizeHeader over Mmap: Canary needs a super that
// reports each block's real usable size, and the Realloc tests need a super
// whose Realloc moves a block (bare Mmap reports 0 and returns nil for both).
func newTestCanary(t *testing.T) *Canary[*header.SizeHeader[*source.Mmap]] {
	t.Helper()

	return New[*header.SizeHeader[*source.Mmap]](header.New[*source.Mmap](source.New()))
}

func TestCanaryRoundTripsAllocFree(t *testing.T) {
	c := newTestCanary(t)

	p := c.Alloc(64)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	if got := c.UsableSize(p); got < 64 {
		t.Errorf("UsableSize = %d, want >= 64", got)
	}

	c.Free(p) // must not panic
}

func TestCanaryDetectsOverwrite(t *testing.T) {
	c := newTestCanary(t)

	p := c.Alloc(32)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	// Overrun the block into the canary word.
	realSize := c.Super.UsableSize(p)
	tail := unsafe.Slice((*byte)(p), realSize)
	for i := range tail {
		tail[i] = 0xff
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Free after overwrite should panic")
		}
	}()

	c.Free(p)
}

func TestCanaryReallocPreservesGuard(t *testing.T) {
	c := newTestCanary(t)

	p := c.Alloc(64)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	grown := c.Realloc(p, 256)
	if grown == nil {
		t.Fatal("Realloc failed")
	}

	c.Free(grown) // must not panic: canary was re-stamped at the new size
}

func TestCanaryFreeNilIsNoop(t *testing.T) {
	c := newTestCanary(t)

	c.Free(nil)
}

func newTestTracer(t *testing.T) *Tracer[*header.SizeHeader[*source.Mmap]] {
	t.Helper()

	return NewTracer[*header.SizeHeader[*source.Mmap]](header.New[*source.Mmap](source.New()))
}

func TestTracerChecksLeaksForLiveAllocations(t *testing.T) {
	tr := newTestTracer(t)

	p1 := tr.Alloc(16)
	p2 := tr.Alloc(32)

	if p1 == nil || p2 == nil {
		t.Fatal("Alloc failed")
	}

	leaks := tr.CheckLeaks()
	if len(leaks) != 2 {
		t.Fatalf("CheckLeaks returned %d entries, want 2", len(leaks))
	}

	tr.Free(p1)

	leaks = tr.CheckLeaks()
	if len(leaks) != 1 {
		t.Fatalf("CheckLeaks returned %d entries after Free, want 1", len(leaks))
	}

	if leaks[0].Pointer != p2 {
		t.Errorf("remaining leak pointer = %p, want %p", leaks[0].Pointer, p2)
	}

	tr.Free(p2)

	if leaks := tr.CheckLeaks(); len(leaks) != 0 {
		t.Fatalf("CheckLeaks returned %d entries after freeing all, want 0", len(leaks))
	}
}

func TestTracerClearDropsAllLeaks(t *testing.T) {
	tr := newTestTracer(t)

	tr.Alloc(16)
	tr.Alloc(16)

	tr.Clear()

	if leaks := tr.CheckLeaks(); len(leaks) != 0 {
		t.Fatalf("CheckLeaks after Clear returned %d entries, want 0", len(leaks))
	}
}

func TestTracerReallocRetracesUnderNewPointer(t *testing.T) {
	tr := newTestTracer(t)

	p := tr.Alloc(16)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	grown := tr.Realloc(p, 4096)
	if grown == nil {
		t.Fatal("Realloc failed")
	}

	leaks := tr.CheckLeaks()
	if len(leaks) != 1 {
		t.Fatalf("CheckLeaks returned %d entries, want 1", len(leaks))
	}

	if leaks[0].Pointer != grown {
		t.Errorf("leak pointer = %p, want %p", leaks[0].Pointer, grown)
	}
}

func TestFormatLeaksIncludesPointerAndFrames(t *testing.T) {
	tr := newTestTracer(t)

	p := tr.Alloc(16)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	out := FormatLeaks(tr.CheckLeaks())
	if !strings.Contains(out, "leak:") {
		t.Errorf("FormatLeaks output missing leak header: %q", out)
	}

	if !strings.Contains(out, "debugheap_test.go") {
		t.Errorf("FormatLeaks output missing call stack frame: %q", out)
	}
}
