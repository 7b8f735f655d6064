package seg

import (
	"testing"

	"github.com/heaplayers-go/heaplayers/internal/source"
)

const (
	testNumBins = 4
	testUnit    = 16
)

func testSizeClass(size uintptr) int {
	for i := 0; i < testNumBins; i++ {
		if size <= testClassSize(i) {
			return i
		}
	}

	return testNumBins - 1
}

func testClassSize(class int) uintptr {
	return uintptr(class+1) * testUnit
}

// S5 from spec.md §8: a request above the largest class routes straight to
// the big heap, bypassing the bin array entirely.
func TestSegHeapOversizeRoutesToBig(t *testing.T) {
	super := source.New()
	big := source.New()

	s := New[*source.Mmap](super, big, testNumBins, testSizeClass, testClassSize)

	oversize := testClassSize(testNumBins-1) + 1

	ptr := s.Alloc(oversize)
	if ptr == nil {
		t.Fatal("Alloc(oversize) failed")
	}

	if got := super.TotalMapped(); got != 0 {
		t.Errorf("oversize alloc should bypass the bin array's super, got %d bytes mapped there", got)
	}

	if got := big.TotalMapped(); got == 0 {
		t.Error("oversize alloc should have gone through Big")
	}
}

func TestSegHeapFreeAndReuse(t *testing.T) {
	super := source.New()
	big := source.New()

	s := New[*source.Mmap](super, big, testNumBins, testSizeClass, testClassSize)

	p := s.Alloc(testUnit)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	s.Free(p, testUnit)

	p2 := s.Alloc(testUnit)
	if p2 != p {
		t.Fatalf("expected freed block to be reused: got %p, want %p", p2, p)
	}
}

// Lenient SegHeap: a miss in the exact class sweeps upward and takes a
// larger cached block as-is (no splitting).
func TestSegHeapSweepsUpwardOnMiss(t *testing.T) {
	super := source.New()
	big := source.New()

	s := New[*source.Mmap](super, big, testNumBins, testSizeClass, testClassSize)

	// Prime class 2 (size 48) with a free block, leaving class 0 (size 16)
	// empty.
	big48 := s.Alloc(testClassSize(2))
	s.Free(big48, testClassSize(2))

	got := s.Alloc(testUnit)
	if got != big48 {
		t.Fatalf("expected sweep to reuse the class-2 block for a class-0 request: got %p, want %p", got, big48)
	}
}

func TestStrictSegHeapDoesNotSweep(t *testing.T) {
	super := source.New()
	big := source.New()

	s := NewStrict[*source.Mmap](super, big, testNumBins, testSizeClass, testClassSize)

	// Prime class 2 with a free block, leaving class 0 empty.
	big48 := s.Alloc(testClassSize(2))
	s.Free(big48, testClassSize(2))

	allocatedBefore := big.TotalMapped()

	got := s.Alloc(testUnit)
	if got == big48 {
		t.Fatal("strict variant must not satisfy a class-0 request from class 2's cache")
	}

	if big.TotalMapped() == allocatedBefore {
		t.Error("strict miss should have fallen through to Big")
	}
}

func TestSegHeapClear(t *testing.T) {
	super := source.New()
	big := source.New()

	s := New[*source.Mmap](super, big, testNumBins, testSizeClass, testClassSize)

	p := s.Alloc(testUnit)
	s.Free(p, testUnit)

	s.Clear()

	for i := 0; i < testNumBins; i++ {
		if s.binmap.IsSet(i) {
			t.Errorf("bin %d bit should be clear after Clear", i)
		}
	}
}
