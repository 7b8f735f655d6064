package concurrent

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/arena"
	"github.com/heaplayers-go/heaplayers/internal/source"
)

func newTestArena(t *testing.T) *arena.Bump[*source.Sized] {
	t.Helper()

	b, err := arena.New[*source.Sized](source.NewSized(), 65536, 16)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}

	return b
}

// S9 from spec.md §8: concurrent stress under Locked.
func TestLockedConcurrentAllocFree(t *testing.T) {
	l := New[*arena.Bump[*source.Sized]](newTestArena(t))

	const goroutines = 32
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()

			for i := 0; i < perGoroutine; i++ {
				p := l.Alloc(64)
				if p == nil {
					t.Error("Alloc returned nil under concurrent load")

					return
				}

				l.Free(p)
			}
		}()
	}

	wg.Wait()
}

func TestBufferedLockedDrainsAtThreshold(t *testing.T) {
	b := NewBuffered[*arena.Bump[*source.Sized]](newTestArena(t), 4)

	ptrs := make([]unsafe.Pointer, 4)
	for i := range ptrs {
		p := b.Alloc(32)
		if p == nil {
			t.Fatal("Alloc failed")
		}

		ptrs[i] = p
	}

	for _, p := range ptrs {
		b.Free(p)
	}

	slot := b.slot(goroutineID())

	slot.mu.Lock()
	buf := slot.buf
	slot.mu.Unlock()

	if len(buf) != 0 {
		t.Errorf("buffer should have drained at threshold, has %d entries", len(buf))
	}
}

func TestBufferedLockedConcurrent(t *testing.T) {
	b := NewBuffered[*arena.Bump[*source.Sized]](newTestArena(t), 8)

	const goroutines = 16
	const perGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()

			for i := 0; i < perGoroutine; i++ {
				p := b.Alloc(32)
				if p == nil {
					t.Error("Alloc returned nil under concurrent load")

					return
				}

				b.Free(p)
			}
		}()
	}

	wg.Wait()
	b.Clear()
}

func TestPerThreadHoldsSlotsAndAllocates(t *testing.T) {
	const numSlots = 4

	slots := make([]*Locked[*arena.Bump[*source.Sized]], numSlots)
	for i := range slots {
		slots[i] = New[*arena.Bump[*source.Sized]](newTestArena(t))
	}

	pt := NewPerThread[*Locked[*arena.Bump[*source.Sized]]](slots)

	if pt.NumHeaps() != numSlots {
		t.Fatalf("NumHeaps = %d, want %d", pt.NumHeaps(), numSlots)
	}

	p := pt.Alloc(32)
	if p == nil {
		t.Fatal("Alloc failed")
	}
}

func TestThreadSpecificLazilyCreatesOnePerGoroutine(t *testing.T) {
	var mu sync.Mutex
	created := 0

	ts := NewThreadSpecific[*Locked[*arena.Bump[*source.Sized]]](func() *Locked[*arena.Bump[*source.Sized]] {
		mu.Lock()
		created++
		mu.Unlock()

		return New[*arena.Bump[*source.Sized]](newTestArena(t))
	})

	p := ts.Alloc(32)
	if p == nil {
		t.Fatal("Alloc failed")
	}

	p2 := ts.Alloc(32)
	if p2 == nil {
		t.Fatal("second Alloc failed")
	}

	mu.Lock()
	n := created
	mu.Unlock()

	if n != 1 {
		t.Errorf("newHeap called %d times for the same goroutine, want 1", n)
	}
}
