package freelist

import (
	"testing"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/arena"
	"github.com/heaplayers-go/heaplayers/internal/source"
)

func TestFreelistReuse(t *testing.T) {
	src := source.NewSized()

	b, err := arena.New[*source.Sized](src, 65536, 16)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}

	fl := New[*arena.Bump[*source.Sized]](b, 64)

	p1 := fl.Alloc(64)
	if p1 == nil {
		t.Fatal("Alloc failed")
	}

	allocated := b.Allocated()

	fl.Free(p1)

	p2 := fl.Alloc(64)
	if p2 != p1 {
		t.Fatalf("expected freed block to be reused: got %p, want %p", p2, p1)
	}

	if b.Allocated() != allocated {
		t.Error("reuse from the freelist should not touch the super")
	}
}

func TestFreelistReallocWithinClass(t *testing.T) {
	src := source.NewSized()

	b, err := arena.New[*source.Sized](src, 65536, 16)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}

	fl := New[*arena.Bump[*source.Sized]](b, 64)

	p := fl.Alloc(32)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	if got := fl.Realloc(p, 64); got != p {
		t.Errorf("Realloc within class should return the same pointer: got %p, want %p", got, p)
	}
}

func TestFreelistClearDrainsToSuper(t *testing.T) {
	src := source.NewSized()

	b, err := arena.New[*source.Sized](src, 65536, 16)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}

	fl := New[*arena.Bump[*source.Sized]](b, 64)

	p := fl.Alloc(64)
	fl.Free(p)
	fl.Clear()

	fl.mu.Lock()
	head := fl.head
	fl.mu.Unlock()

	if head != nil {
		t.Error("Clear should leave the list empty")
	}
}

// S4 from spec.md §8: bounded freelist overflow drains to the super.
func TestBoundedFreelistOverflowDrains(t *testing.T) {
	src := source.NewSized()

	b, err := arena.New[*source.Sized](src, 65536, 16)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}

	const capacity = 4

	bf := NewBounded[*arena.Bump[*source.Sized]](b, 64, capacity)

	ptrs := make([]unsafe.Pointer, 5)
	for i := range ptrs {
		ptrs[i] = bf.Alloc(64)
		if ptrs[i] == nil {
			t.Fatalf("Alloc(%d) failed", i)
		}
	}

	for i := 0; i < 4; i++ {
		bf.Free(ptrs[i])
	}

	if got := bf.Count(); got != capacity {
		t.Fatalf("after 4 frees with capacity %d, Count = %d, want %d", capacity, got, capacity)
	}

	// The 5th free overflows the capacity: all 4 held entries (plus this
	// one) drain to the super, leaving the list empty.
	bf.Free(ptrs[4])

	if got := bf.Count(); got != 0 {
		t.Fatalf("after overflow free, Count = %d, want 0", got)
	}

	// The next 4 allocations must come from the super, not the (now empty)
	// freelist, since the overflow drained everything.
	allocatedBefore := b.Allocated()

	for i := 0; i < 4; i++ {
		if bf.Alloc(64) == nil {
			t.Fatalf("post-overflow Alloc(%d) failed", i)
		}
	}

	if b.Allocated() <= allocatedBefore {
		t.Error("post-overflow allocations should have gone to the super")
	}
}

func TestBoundedFreelistBelowCapacityKeepsReusing(t *testing.T) {
	src := source.NewSized()

	b, err := arena.New[*source.Sized](src, 65536, 16)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}

	bf := NewBounded[*arena.Bump[*source.Sized]](b, 64, 8)

	p := bf.Alloc(64)
	bf.Free(p)

	if got := bf.Alloc(64); got != p {
		t.Fatalf("expected reuse below capacity: got %p, want %p", got, p)
	}
}
