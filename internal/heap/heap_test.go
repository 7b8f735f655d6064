package heap

import (
	"testing"
	"unsafe"
)

func TestGCD(t *testing.T) {
	cases := []struct{ a, b, want uintptr }{
		{16, 8, 8},
		{8, 16, 8},
		{12, 18, 6},
		{7, 13, 1},
		{0, 5, 5},
	}
	for _, c := range cases {
		if got := GCD(c.a, c.b); got != c.want {
			t.Errorf("GCD(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestLCM(t *testing.T) {
	cases := []struct{ a, b, want uintptr }{
		{4, 6, 12},
		{16, 16, 16},
		{8, 24, 24},
		{1, 16, 16},
	}
	for _, c := range cases {
		if got := LCM(c.a, c.b); got != c.want {
			t.Errorf("LCM(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ size, alignment, want uintptr }{
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{0, 16, 0},
		{100, 1, 100},
	}
	for _, c := range cases {
		if got := AlignUp(c.size, c.alignment); got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.size, c.alignment, got, c.want)
		}
	}
}

func TestAlignUpOverflow(t *testing.T) {
	if got := AlignUp(^uintptr(0), 16); got != 0 {
		t.Errorf("AlignUp(max, 16) = %d, want 0 (overflow)", got)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uintptr{1, 2, 4, 8, 4096} {
		if !IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = false, want true", n)
		}
	}

	for _, n := range []uintptr{0, 3, 6, 100} {
		if IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = true, want false", n)
		}
	}
}

func TestOverflowsHalfAddressSpace(t *testing.T) {
	if OverflowsHalfAddressSpace(1024) {
		t.Error("1024 should not overflow")
	}

	if !OverflowsHalfAddressSpace(^uintptr(0)) {
		t.Error("max uintptr should overflow")
	}
}

func TestCopyAndZeroBytes(t *testing.T) {
	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(i + 1)
	}

	dst := make([]byte, 16)
	CopyBytes(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 16)

	for i := range dst {
		if dst[i] != src[i] {
			t.Fatalf("byte %d = %d, want %d", i, dst[i], src[i])
		}
	}

	ZeroBytes(unsafe.Pointer(&dst[0]), 16)

	for i, b := range dst {
		if b != 0 {
			t.Fatalf("byte %d = %d after ZeroBytes, want 0", i, b)
		}
	}
}

func TestOnceConstructsExactlyOnce(t *testing.T) {
	var o Once[*int]

	calls := 0
	newFn := func() *int {
		calls++
		v := 42

		return &v
	}

	first := o.Get(newFn)
	second := o.Get(newFn)

	if first != second {
		t.Errorf("Get returned different instances: %p, %p", first, second)
	}

	if calls != 1 {
		t.Errorf("new function called %d times, want 1", calls)
	}
}
