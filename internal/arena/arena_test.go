package arena

import (
	"testing"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/source"
)

// S3 from spec.md §8: bump + clear.
func TestBumpAllocateNonOverlappingAndClear(t *testing.T) {
	src := source.NewSized()

	b, err := New[*source.Sized](src, 65536, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 1000

	ptrs := make([]uintptr, n)

	for i := 0; i < n; i++ {
		p := b.Alloc(100)
		if p == nil {
			t.Fatalf("Alloc(%d) failed", i)
		}

		ptrs[i] = uintptr(p)
	}

	for i := 1; i < n; i++ {
		if ptrs[i] >= ptrs[i-1] && ptrs[i] < ptrs[i-1]+100 {
			t.Fatalf("overlap detected between allocation %d and %d", i-1, i)
		}
	}

	firstChunkBase := ptrs[0]

	b.Clear()

	p := b.Alloc(100)
	if p == nil {
		t.Fatal("Alloc after Clear failed")
	}

	if uintptr(p) != firstChunkBase {
		t.Errorf("after Clear, first allocation = %#x, want base of first chunk %#x", p, firstChunkBase)
	}
}

func TestBumpChunkSizeValidation(t *testing.T) {
	src := source.New()

	if _, err := New[*source.Mmap](src, 0, 16); err == nil {
		t.Error("New with chunkSize 0 should fail")
	}

	if _, err := New[*source.Mmap](src, 17, 16); err == nil {
		t.Error("New with chunkSize not a multiple of alignment should fail")
	}
}

func TestBumpRealloGrowInPlace(t *testing.T) {
	src := source.NewSized()

	b, err := New[*source.Sized](src, 65536, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p := b.Alloc(64)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	data := unsafe.Slice((*byte)(p), 64)
	for i := range data {
		data[i] = byte(i)
	}

	grown := b.Realloc(p, 128)
	if grown != p {
		t.Fatalf("Realloc should grow in place: got %p, want %p", grown, p)
	}

	grownData := unsafe.Slice((*byte)(grown), 64)
	for i, v := range grownData {
		if v != byte(i) {
			t.Fatalf("content at %d corrupted after in-place growth", i)
		}
	}
}

func TestZoneHugeChunk(t *testing.T) {
	src := source.NewSized()
	z := NewZone[*source.Sized](src, 4096, 16)

	small := z.Alloc(100)
	if small == nil {
		t.Fatal("small alloc failed")
	}

	huge := z.Alloc(1 << 20)
	if huge == nil {
		t.Fatal("huge alloc failed")
	}

	// The huge allocation must not collide with the small one.
	if uintptr(huge) == uintptr(small) {
		t.Fatal("huge and small allocations collided")
	}

	z.Clear()
}
