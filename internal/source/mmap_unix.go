//go:build linux || darwin || freebsd || netbsd || openbsd

package source

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapPages acquires n bytes (already page-rounded) of private anonymous
// memory via mmap, matching original_source/heaps/top/mmapheap.h's Unix
// path: MAP_PRIVATE|MAP_ANONYMOUS, PROT_READ|PROT_WRITE.
func mapPages(n uintptr) (unsafe.Pointer, bool) {
	b, err := unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, false
	}

	ptr := unsafe.Pointer(&b[0])
	nameRegion(ptr, n)

	return ptr, true
}

// unmapPages releases pages back to the OS (spec.md §4.1: "On Windows-like
// and mmap sources, release returns pages to the OS").
func unmapPages(ptr unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(ptr), n)
	_ = unix.Munmap(b)
}

// advisePages hints the range may be reclaimed without unmapping it.
func advisePages(ptr unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(ptr), n)
	_ = unix.Madvise(b, unix.MADV_DONTNEED)
}

func pageSizeImpl() int {
	return unix.Getpagesize()
}

// nameRegion labels the VMA for observability on Linux (spec.md §4.1: "the
// region is named via process control for observability"). Best-effort;
// unsupported kernels and non-Linux Unixes are silently ignored.
func nameRegion(ptr unsafe.Pointer, n uintptr) {
	setVMAName(ptr, n, "heaplayers")
}
