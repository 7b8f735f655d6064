package header

import (
	"testing"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/source"
)

// S2 from spec.md §8: header-layer UsableSize precision and alignment.
func TestSizeHeaderUsableSizeIsPrecise(t *testing.T) {
	src := source.New()
	h := New[*source.Mmap](src)

	p := h.Alloc(100)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	if got := h.UsableSize(p); got != 100 {
		t.Errorf("UsableSize = %d, want 100", got)
	}
}

func TestSizeHeaderPreservesAlignment(t *testing.T) {
	src := source.New()
	h := New[*source.Mmap](src)

	p := h.Alloc(8)
	if uintptr(p)%h.Alignment() != 0 {
		t.Errorf("pointer %p not aligned to %d", p, h.Alignment())
	}
}

func TestSizeHeaderReallocPreservesContentAndSize(t *testing.T) {
	src := source.New()
	h := New[*source.Mmap](src)

	p := h.Alloc(32)
	data := unsafe.Slice((*byte)(p), 32)
	for i := range data {
		data[i] = byte(i + 1)
	}

	grown := h.Realloc(p, 64)
	if grown == nil {
		t.Fatal("Realloc failed")
	}

	if got := h.UsableSize(grown); got != 64 {
		t.Errorf("UsableSize after grow = %d, want 64", got)
	}

	grownData := unsafe.Slice((*byte)(grown), 32)
	for i, b := range grownData {
		if b != byte(i+1) {
			t.Fatalf("content at %d = %d, want %d", i, b, i+1)
		}
	}
}

func TestSizeHeaderReallocShrink(t *testing.T) {
	src := source.New()
	h := New[*source.Mmap](src)

	p := h.Alloc(64)
	shrunk := h.Realloc(p, 16)
	if shrunk == nil {
		t.Fatal("Realloc shrink failed")
	}

	if got := h.UsableSize(shrunk); got != 16 {
		t.Errorf("UsableSize after shrink = %d, want 16", got)
	}
}

func TestOwnerSizeHeaderTracksOwner(t *testing.T) {
	src := source.New()
	h1 := NewOwner[*source.Mmap](src)
	h2 := NewOwner[*source.Mmap](src)

	p1 := h1.Alloc(16)
	p2 := h2.Alloc(16)

	if h1.Owner(p1) != unsafe.Pointer(h1) {
		t.Error("p1's owner should be h1")
	}

	if h2.Owner(p2) != unsafe.Pointer(h2) {
		t.Error("p2's owner should be h2")
	}

	if h1.Owner(p1) == h2.Owner(p2) {
		t.Error("distinct owners should not compare equal")
	}
}
