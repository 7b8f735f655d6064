//go:build darwin || freebsd || netbsd || openbsd

package source

import "unsafe"

// setVMAName is a no-op on platforms without Linux's anonymous-VMA naming
// facility.
func setVMAName(ptr unsafe.Pointer, n uintptr, name string) {}
