package source

import "testing"

func TestMmapAllocRelease(t *testing.T) {
	m := New()

	ps := m.Alignment()
	if ps == 0 || ps&(ps-1) != 0 {
		t.Fatalf("page size %d is not a power of two", ps)
	}

	ptr := m.Alloc(1)
	if ptr == nil {
		t.Fatal("Alloc(1) failed")
	}

	if m.TotalMapped() != ps {
		t.Errorf("TotalMapped() = %d, want %d", m.TotalMapped(), ps)
	}

	m.Release(ptr, ps)

	if m.TotalMapped() != 0 {
		t.Errorf("TotalMapped() after release = %d, want 0", m.TotalMapped())
	}
}

func TestMmapZeroSize(t *testing.T) {
	m := New()
	if m.Alloc(0) != nil {
		t.Error("Alloc(0) should return nil")
	}
}

func TestSizedRoundTrip(t *testing.T) {
	s := NewSized()

	ptr := s.Alloc(100)
	if ptr == nil {
		t.Fatal("Alloc failed")
	}

	if got := s.UsableSize(ptr); got < 100 {
		t.Errorf("UsableSize = %d, want >= 100", got)
	}

	s.Free(ptr)

	if got := s.UsableSize(ptr); got != 0 {
		t.Errorf("UsableSize after Free = %d, want 0", got)
	}
}

func TestSizedClear(t *testing.T) {
	s := NewSized()

	for i := 0; i < 4; i++ {
		if s.Alloc(uintptr(PageSize())) == nil {
			t.Fatal("Alloc failed")
		}
	}

	s.Clear()

	if len(s.lengths) != 0 {
		t.Errorf("Clear left %d entries", len(s.lengths))
	}
}
