//go:build cgo

package shim

/*
#include <stddef.h>
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// The exported names below form the C allocation symbol family of the shim
// (spec.md §4.9); the C++ operator-new / operator-delete family is not
// exported. They become a real shared object only when cmd/heaplayers-shim
// links this package with -buildmode=c-shared; the cgo build tag leaves
// this file out of any build made with cgo disabled.

//export heaplayers_malloc
func heaplayers_malloc(size C.size_t) unsafe.Pointer {
	return Allocate(uintptr(size))
}

//export heaplayers_free
func heaplayers_free(ptr unsafe.Pointer) {
	Free(ptr)
}

//export heaplayers_calloc
func heaplayers_calloc(count, size C.size_t) unsafe.Pointer {
	return Callocate(uintptr(count), uintptr(size))
}

//export heaplayers_realloc
func heaplayers_realloc(ptr unsafe.Pointer, size C.size_t) unsafe.Pointer {
	return Reallocate(ptr, uintptr(size))
}

//export heaplayers_reallocarray
func heaplayers_reallocarray(ptr unsafe.Pointer, count, size C.size_t) unsafe.Pointer {
	total := uintptr(count) * uintptr(size)
	if count != 0 && total/uintptr(count) != uintptr(size) {
		return nil // overflow
	}

	return Reallocate(ptr, total)
}

//export heaplayers_aligned_alloc
func heaplayers_aligned_alloc(alignment, size C.size_t) unsafe.Pointer {
	return AlignedAllocate(uintptr(alignment), uintptr(size))
}

//export heaplayers_memalign
func heaplayers_memalign(alignment, size C.size_t) unsafe.Pointer {
	return AlignedAllocate(uintptr(alignment), uintptr(size))
}

//export heaplayers_posix_memalign
func heaplayers_posix_memalign(memptr *unsafe.Pointer, alignment, size C.size_t) C.int {
	p := AlignedAllocate(uintptr(alignment), uintptr(size))
	if p == nil {
		return C.int(12) // ENOMEM
	}

	*memptr = p

	return 0
}

//export heaplayers_valloc
func heaplayers_valloc(size C.size_t) unsafe.Pointer {
	return AlignedAllocate(pageSizeHint, uintptr(size))
}

//export heaplayers_pvalloc
func heaplayers_pvalloc(size C.size_t) unsafe.Pointer {
	rounded := (uintptr(size) + pageSizeHint - 1) &^ (pageSizeHint - 1)

	return AlignedAllocate(pageSizeHint, rounded)
}

//export heaplayers_recalloc
func heaplayers_recalloc(ptr unsafe.Pointer, count, size C.size_t) unsafe.Pointer {
	oldSize := UsableSize(ptr)
	total := uintptr(count) * uintptr(size)

	newPtr := Reallocate(ptr, total)
	if newPtr == nil {
		return nil
	}

	if total > oldSize {
		tail := unsafe.Add(newPtr, oldSize)
		heap.ZeroBytes(tail, total-oldSize)
	}

	return newPtr
}

//export heaplayers_malloc_usable_size
func heaplayers_malloc_usable_size(ptr unsafe.Pointer) C.size_t {
	return C.size_t(UsableSize(ptr))
}

//export heaplayers_strdup
func heaplayers_strdup(s *C.char) *C.char {
	if s == nil {
		return nil
	}

	n := cStrlen(unsafe.Pointer(s))

	p := Allocate(n + 1)
	if p == nil {
		return nil
	}

	heap.CopyBytes(p, unsafe.Pointer(s), n)
	*(*byte)(unsafe.Add(p, n)) = 0

	return (*C.char)(p)
}

//export heaplayers_strndup
func heaplayers_strndup(s *C.char, n C.size_t) *C.char {
	if s == nil {
		return nil
	}

	limit := uintptr(n)

	length := cStrlen(unsafe.Pointer(s))
	if length > limit {
		length = limit
	}

	p := Allocate(length + 1)
	if p == nil {
		return nil
	}

	heap.CopyBytes(p, unsafe.Pointer(s), length)
	*(*byte)(unsafe.Add(p, length)) = 0

	return (*C.char)(p)
}

// cStrlen finds the length of a nul-terminated C string without a cgo call
// into libc, so strdup/strndup stay within the package's existing minimal
// cgo surface (just C.size_t/C.char conversions at the export boundary).
func cStrlen(s unsafe.Pointer) uintptr {
	n := uintptr(0)
	for *(*byte)(unsafe.Add(s, n)) != 0 {
		n++
	}

	return n
}

// heaplayers_getcwd implements getcwd(buf, size) (spec.md §4.9: "getcwd
// (when it may allocate)"): a nil buf is the glibc extension where getcwd
// itself allocates a large-enough buffer through Allocate; a non-nil buf
// must already be at least size bytes.
//
//export heaplayers_getcwd
func heaplayers_getcwd(buf *C.char, size C.size_t) *C.char {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}

	n := uintptr(len(cwd))

	if buf == nil {
		p := Allocate(n + 1)
		if p == nil {
			return nil
		}

		writeCString(p, cwd)

		return (*C.char)(p)
	}

	if uintptr(size) < n+1 {
		return nil // ERANGE: caller's buffer is too small
	}

	writeCString(unsafe.Pointer(buf), cwd)

	return buf
}

// writeCString copies s into dst followed by a nul terminator. dst must
// have room for len(s)+1 bytes.
func writeCString(dst unsafe.Pointer, s string) {
	out := unsafe.Slice((*byte)(dst), len(s)+1)
	copy(out, s)
	out[len(s)] = 0
}

//export heaplayers_malloc_lock
func heaplayers_malloc_lock() {
	Lock()
}

//export heaplayers_malloc_unlock
func heaplayers_malloc_unlock() {
	Unlock()
}

// pageSizeHint approximates the platform page size for valloc/pvalloc,
// which only need an allocation aligned to *a* page boundary, not
// necessarily the kernel's exact configured size.
const pageSizeHint = 4096
