//go:build linux

package source

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// PR_SET_VMA and PR_SET_VMA_ANON_NAME are not yet exposed as named
// constants by golang.org/x/sys/unix on all supported Go toolchains; the
// raw values come directly from the Linux UAPI (linux/prctl.h).
const (
	prSetVMA         = 0x53564d41
	prSetVMAAnonName = 0
)

// setVMAName calls prctl(PR_SET_VMA, PR_SET_VMA_ANON_NAME, addr, len, name)
// so acquired regions show up labeled in /proc/<pid>/maps and tools like
// smem, matching spec.md §4.1's "named via process control for
// observability." Requires a kernel with CONFIG_ANON_VMA_NAME; failures are
// ignored since naming is advisory only.
func setVMAName(ptr unsafe.Pointer, n uintptr, name string) {
	nameBytes := append([]byte(name), 0)
	_, _, _ = unix.Syscall6(
		unix.SYS_PRCTL,
		uintptr(prSetVMA),
		uintptr(prSetVMAAnonName),
		uintptr(ptr),
		n,
		uintptr(unsafe.Pointer(&nameBytes[0])),
		0,
	)
}
