package source

import (
	"sync"
	"unsafe"
)

// Sized wraps Mmap with an unsized Free, recovering each region's length
// from an internal map so callers that only track a pointer (not a length)
// can still release it (spec.md §4.1, "Sized-free variant"). The length map
// is a plain Go map, so its storage comes from Go's own runtime allocator
// and never passes through the shim's allocation surface.
type Sized struct {
	mmap    *Mmap
	mu      sync.Mutex
	lengths map[unsafe.Pointer]uintptr
}

// NewSized constructs a Sized source over a fresh Mmap.
func NewSized() *Sized {
	return &Sized{
		mmap:    New(),
		lengths: make(map[unsafe.Pointer]uintptr),
	}
}

// Alignment returns the OS page size.
func (s *Sized) Alignment() uintptr { return s.mmap.Alignment() }

// Alloc acquires a region and records its length for later unsized release.
func (s *Sized) Alloc(size uintptr) unsafe.Pointer {
	ptr := s.mmap.Alloc(size)
	if ptr == nil {
		return nil
	}

	n := roundToPage(size, s.mmap.Alignment())

	s.mu.Lock()
	s.lengths[ptr] = n
	s.mu.Unlock()

	return ptr
}

// Free looks up ptr's recorded length and releases it (spec.md §4.1:
// "release(p) (looks up length in an internal map)").
func (s *Sized) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	s.mu.Lock()
	n, ok := s.lengths[ptr]
	if ok {
		delete(s.lengths, ptr)
	}
	s.mu.Unlock()

	if ok {
		s.mmap.Release(ptr, n)
	}
}

// Release is the sized variant, forwarded directly (spec.md §4.1:
// "release(p, n) (sized)").
func (s *Sized) Release(ptr unsafe.Pointer, n uintptr) {
	s.mu.Lock()
	delete(s.lengths, ptr)
	s.mu.Unlock()

	s.mmap.Release(ptr, n)
}

// Realloc has no meaningful in-place implementation; see Mmap.Realloc.
func (s *Sized) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return s.Alloc(size)
	}

	return nil
}

// UsableSize returns the page-rounded length of the region containing ptr.
func (s *Sized) UsableSize(ptr unsafe.Pointer) uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lengths[ptr]
}

// Clear releases every region this instance has acquired.
func (s *Sized) Clear() {
	s.mu.Lock()
	lengths := s.lengths
	s.lengths = make(map[unsafe.Pointer]uintptr)
	s.mu.Unlock()

	for ptr, n := range lengths {
		s.mmap.Release(ptr, n)
	}
}

func roundToPage(size, pageSize uintptr) uintptr {
	return (size + pageSize - 1) &^ (pageSize - 1)
}
