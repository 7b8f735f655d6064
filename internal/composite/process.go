package composite

import "github.com/heaplayers-go/heaplayers/internal/heap"

var processHeap heap.Once[*General]

// Process returns the single process-wide General composite, constructing
// it on first call (SPEC_FULL.md §D.4, grounded on
// original_source/heaps/utility/uniqueheap.h's "exactly one instance"
// guard). Every later call returns the same instance. The interposition
// shim (internal/shim) routes every call it does not serve from its own
// bootstrap heap to this instance.
func Process() *General {
	return processHeap.Get(func() *General {
		return NewGeneral()
	})
}
