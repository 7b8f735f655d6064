package kingsley

import (
	"testing"

	"github.com/heaplayers-go/heaplayers/internal/source"
)

// S1 from spec.md §8: Kingsley class boundaries.
func TestSizeClassBoundaries(t *testing.T) {
	cases := []struct {
		size  uintptr
		class int
	}{
		{1, 0},
		{8, 0},
		{9, 1},
		{16, 1},
		{17, 2},
		{32, 2},
		{33, 3},
	}

	for _, c := range cases {
		if got := SizeClass(c.size); got != c.class {
			t.Errorf("SizeClass(%d) = %d, want %d", c.size, got, c.class)
		}
	}
}

func TestClassSizeMatchesPowersOfTwo(t *testing.T) {
	for i := 0; i < NumBins; i++ {
		want := uintptr(8) << uint(i)
		if got := ClassSize(i); got != want {
			t.Errorf("ClassSize(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestSizeClassRoundTripsThroughClassSize(t *testing.T) {
	for i := 0; i < NumBins; i++ {
		sz := ClassSize(i)
		if got := SizeClass(sz); got != i {
			t.Errorf("SizeClass(ClassSize(%d)) = %d, want %d", i, got, i)
		}
	}
}

func TestKingsleyAllocRoundsUpToClass(t *testing.T) {
	super := source.New()
	big := source.New()

	k := New[*source.Mmap](super, big)

	// 17 bytes must round up to class 2's 32-byte class.
	p := k.Alloc(17)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	if got := k.UsableSize(p); got != 32 {
		t.Fatalf("UsableSize(p) = %d, want 32", got)
	}

	k.Free(p)

	p2 := k.Alloc(32)
	if p2 != p {
		t.Fatalf("a 32-byte request should reuse the same class-2 block freed at 17 bytes: got %p, want %p", p2, p)
	}
}
