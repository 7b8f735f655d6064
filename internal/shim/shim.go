package shim

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/heaplayers-go/heaplayers/internal/composite"
	"github.com/heaplayers-go/heaplayers/internal/concurrent"
	"github.com/heaplayers-go/heaplayers/internal/heap"
)

// initState models the shim's lazy TLS-equivalent bootstrap (spec.md §4.9:
// "a double-checked state machine {NEEDS_KEY, CREATING_KEY, DONE}").
// Go gives every goroutine a stack-derived identity without any allocation
// (concurrent.GoroutineID), so there is no real lazy key-creation cost to
// pay; the state machine is kept anyway so the re-entry guard's own
// initialization is demonstrably safe to call from inside an allocation
// that happens before it has run, matching the original's guarantee
// exactly rather than assuming Go's runtime makes the hazard impossible.
type initState int32

const (
	needsKey initState = iota
	creatingKey
	done
)

var (
	state   int32 = int32(needsKey)
	stateMu sync.Mutex

	guardMu sync.Mutex
	active  map[uint64]bool

	// reentries counts allocations served from the bootstrap heap because
	// the calling goroutine was already inside a shim entry point
	// (spec.md §7: "logged as such if telemetry is enabled" — served here
	// by a lock-free counter rather than a log call, per SPEC_FULL.md §B).
	reentries int64
)

// ensureReady runs the CREATING_KEY window exactly once. A call that finds
// the window already running elsewhere returns at once without waiting, so
// the caller sees the state is not yet done and serves its allocation from
// the bootstrap heap.
func ensureReady() {
	if atomic.LoadInt32(&state) == int32(done) {
		return
	}

	if !stateMu.TryLock() {
		return
	}
	defer stateMu.Unlock()

	if state == int32(done) {
		return
	}

	atomic.StoreInt32(&state, int32(creatingKey))

	guardMu.Lock()
	if active == nil {
		active = make(map[uint64]bool)
	}
	guardMu.Unlock()

	atomic.StoreInt32(&state, int32(done))
}

// enter reports whether the calling goroutine is already inside a shim
// entry point (re-entrant), marking it active if not.
func enter() bool {
	id := concurrent.GoroutineID()

	guardMu.Lock()
	defer guardMu.Unlock()

	if active[id] {
		return true
	}

	active[id] = true

	return false
}

func leave() {
	id := concurrent.GoroutineID()

	guardMu.Lock()
	delete(active, id)
	guardMu.Unlock()
}

// ReentryCount returns the number of allocations served from the bootstrap
// heap due to re-entrant calls, for callers that poll their own telemetry.
func ReentryCount() int64 {
	return atomic.LoadInt64(&reentries)
}

// Allocate implements the shim's allocate(n) protocol (spec.md §4.9):
// during CREATING_KEY, or on a re-entrant call, serve from the bootstrap
// heap; otherwise route to the process composite.
func Allocate(size uintptr) unsafe.Pointer {
	if atomic.LoadInt32(&state) != int32(done) {
		ensureReady()

		if atomic.LoadInt32(&state) != int32(done) {
			return bootstrapAlloc(size)
		}
	}

	if enter() {
		atomic.AddInt64(&reentries, 1)

		return bootstrapAlloc(size)
	}
	defer leave()

	return composite.Process().Allocate(size)
}

// waitForFork blocks while Lock is held, without marking the calling
// goroutine active, so entry points that don't themselves allocate (Free,
// UsableSize) still quiesce during a fork window.
func waitForFork() {
	guardMu.Lock()
	guardMu.Unlock() //nolint:staticcheck // deliberate barrier, not a real critical section
}

// Free implements the shim's free(p) protocol: a pointer inside the
// bootstrap buffer is never reclaimed (spec.md §4.9); anything else is
// forwarded to the composite.
func Free(ptr unsafe.Pointer) {
	if ptr == nil || bootstrapContains(ptr) {
		return
	}

	waitForFork()
	composite.Process().Free(ptr)
}

// Reallocate implements the shim's reallocate(p, n).
func Reallocate(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return Allocate(size)
	}

	if bootstrapContains(ptr) {
		// The bootstrap heap tracks no per-block size (it only ever bumps
		// forward, spec.md §4.9), so there is nothing to copy from; the
		// caller gets a fresh block from the real composite instead. This
		// only matters if a bootstrap-served block is reallocated, which
		// should not happen once initialization has completed.
		return Allocate(size)
	}

	if atomic.LoadInt32(&state) != int32(done) {
		ensureReady()

		if atomic.LoadInt32(&state) != int32(done) {
			return bootstrapAlloc(size)
		}
	}

	if enter() {
		atomic.AddInt64(&reentries, 1)

		return bootstrapAlloc(size)
	}
	defer leave()

	return composite.Process().Reallocate(ptr, size)
}

// Callocate implements the shim's callocate(count, size).
func Callocate(count, size uintptr) unsafe.Pointer {
	if atomic.LoadInt32(&state) != int32(done) {
		ensureReady()

		if atomic.LoadInt32(&state) != int32(done) {
			return bootstrapAlloc(count * size)
		}
	}

	if enter() {
		atomic.AddInt64(&reentries, 1)

		return bootstrapAlloc(count * size)
	}
	defer leave()

	return composite.Process().Callocate(count, size)
}

// AlignedAllocate implements the shim's memory_align(alignment, size).
func AlignedAllocate(alignment, size uintptr) unsafe.Pointer {
	if atomic.LoadInt32(&state) != int32(done) {
		ensureReady()

		if atomic.LoadInt32(&state) != int32(done) {
			return bootstrapAlloc(size)
		}
	}

	if enter() {
		atomic.AddInt64(&reentries, 1)

		return bootstrapAlloc(size)
	}
	defer leave()

	return composite.Process().AlignedAllocate(alignment, size)
}

// UsableSize implements the shim's usable_size(p).
func UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil || bootstrapContains(ptr) {
		return 0
	}

	waitForFork()

	return composite.Process().UsableSize(ptr)
}

// Lock quiesces the shim ahead of a fork (spec.md §4.9, §5 "Fork safety"):
// it holds the guard mutex (blocking every other Allocate/Free entry until
// Unlock) and, if the process composite itself exposes a heap.Locker (a
// concurrency layer built from internal/concurrent.Locked or
// BufferedLocked), locks that too, outer-to-inner.
func Lock() {
	guardMu.Lock()

	if l, ok := any(composite.Process()).(heap.Locker); ok {
		l.Lock()
	}
}

// Unlock releases the locks Lock acquired, in reverse order.
func Unlock() {
	if l, ok := any(composite.Process()).(heap.Locker); ok {
		l.Unlock()
	}

	guardMu.Unlock()
}

// init forces the Go scheduler to have at least observed this goroutine
// before any exported entry point runs, so the first real call never pays
// for runtime.Stack's one-time setup inside the CREATING_KEY window.
func init() {
	runtime.Gosched()
}
