//go:build windows

package source

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// mapPages reserves and commits n bytes via VirtualAlloc, matching
// original_source/heaps/top/mmapheap.h's Windows path
// (MEM_RESERVE|MEM_COMMIT, PAGE_READWRITE).
func mapPages(n uintptr) (unsafe.Pointer, bool) {
	addr, err := windows.VirtualAlloc(0, n, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil || addr == 0 {
		return nil, false
	}

	return unsafe.Pointer(addr), true
}

// unmapPages releases the region back to the OS.
func unmapPages(ptr unsafe.Pointer, n uintptr) {
	_ = windows.VirtualFree(uintptr(ptr), 0, windows.MEM_RELEASE)
}

// advisePages resets pages without releasing the address range.
func advisePages(ptr unsafe.Pointer, n uintptr) {
	_, _ = windows.VirtualAlloc(uintptr(ptr), n, windows.MEM_RESET, windows.PAGE_READWRITE)
}

func pageSizeImpl() int {
	var si windows.SystemInfo

	windows.GetSystemInfo(&si)

	return int(si.PageSize)
}

// setVMAName has no Windows equivalent exposed by golang.org/x/sys/windows;
// region naming is Linux-only (spec.md §4.1).
func setVMAName(ptr unsafe.Pointer, n uintptr, name string) {}
