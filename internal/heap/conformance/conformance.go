// Package conformance holds the reusable universal-invariant checks from
// spec.md §8 ("Universal invariants (for all composites C)"). Every
// composite's test file calls Run against a factory for its own stack, the
// way internal/allocator/allocator_test.go and integration_test.go share
// defaultConfig() across cases in the teacher repo.
package conformance

import (
	"testing"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// Run exercises properties 1-4 and 9 from spec.md §8 against a freshly
// constructed heap. newHeap must return a heap whose state is independent
// of any previously returned instance.
func Run(t *testing.T, newHeap func() heap.Heap) {
	t.Helper()

	t.Run("AllocUsableSizeAndAlignment", func(t *testing.T) {
		h := newHeap()
		for _, n := range []uintptr{0, 1, 7, 8, 9, 16, 100, 4096, 65536} {
			p := h.Alloc(n)
			if p == nil {
				if n == 0 {
					t.Fatalf("Alloc(0) returned nil")
				}

				continue
			}

			want := n
			if want < heap.NaturalAlignment {
				want = heap.NaturalAlignment
			}

			if got := h.UsableSize(p); got < want {
				t.Errorf("Alloc(%d): UsableSize = %d, want >= %d", n, got, want)
			}

			if align := h.Alignment(); align != 0 && uintptr(p)%align != 0 {
				t.Errorf("Alloc(%d): pointer %p not aligned to %d", n, p, align)
			}

			h.Free(p)
		}
	})

	t.Run("FreeNilIsNoop", func(t *testing.T) {
		h := newHeap()
		h.Free(nil)

		p := h.Alloc(64)
		if p == nil {
			t.Fatal("Alloc after Free(nil) failed")
		}

		h.Free(p)
	})

	t.Run("ReallocIdentity", func(t *testing.T) {
		h := newHeap()

		p := h.Realloc(nil, 128)
		if p == nil {
			t.Fatal("Realloc(nil, n) failed")
		}

		if h.UsableSize(p) < 128 {
			t.Errorf("Realloc(nil, 128): usable size %d < 128", h.UsableSize(p))
		}

		_ = h.Realloc(p, 0) // frees p; nil-or-minimum return is adapter-specific.
	})

	t.Run("UsableSizeRoundTrip", func(t *testing.T) {
		h := newHeap()

		p := h.Alloc(200)
		if p == nil {
			t.Fatal("Alloc failed")
		}

		want := h.UsableSize(p)

		// Interleave an unrelated allocation that does not touch p.
		q := h.Alloc(8)

		if got := h.UsableSize(p); got != want {
			t.Errorf("UsableSize(p) changed after unrelated Alloc: %d -> %d", want, got)
		}

		h.Free(q)
		h.Free(p)
	})

	t.Run("OverflowRejected", func(t *testing.T) {
		h := newHeap()

		p := h.Alloc(^uintptr(0))
		if p != nil {
			t.Errorf("Alloc(max uintptr) = %p, want nil", p)
		}
	})
}

// RunCallocZeroFill checks property 5 (zero-fill of callocate) against a
// callocate-shaped function, kept separate from Run because not every Heap
// implements the ANSI adapter's Callocate.
func RunCallocZeroFill(t *testing.T, callocate func(count, size uintptr) unsafe.Pointer, free func(unsafe.Pointer)) {
	t.Helper()

	p := callocate(17, 13)
	if p == nil {
		t.Fatal("Callocate failed")
	}

	buf := unsafe.Slice((*byte)(p), 17*13)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}

	free(p)
}
