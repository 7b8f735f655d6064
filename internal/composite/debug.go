package composite

import (
	"github.com/heaplayers-go/heaplayers/internal/ansi"
	"github.com/heaplayers-go/heaplayers/internal/debugheap"
	"github.com/heaplayers-go/heaplayers/internal/heap"
	"github.com/heaplayers-go/heaplayers/internal/kingsley"
)

// Debug wraps a Kingsley composite with canary and/or leak-tracing
// diagnostics, gated by Config.EnableCanary / Config.EnableLeakCheck
// (spec.md §6: "the debug/canary variants from spec.md §4.6... layered on
// top of any composite without changing its semantics"). Since which
// layers are present is a runtime choice here rather than a fixed generic
// instantiation, Debug's Super is typed as the heap.Heap interface itself
// (a layer can always be parameterized over heap.Heap, the contract every
// concrete layer already satisfies).
type Debug struct {
	*ansi.Adapter[heap.Heap]

	tracer *debugheap.Tracer[heap.Heap]
}

// NewDebug constructs a Debug composite over a fresh Kingsley stack. Unlike
// General and the PerThread variants, both diagnostic layers default to
// enabled here (an all-off Debug composite would be indistinguishable from
// General); pass WithCanary(false) or WithLeakCheck(false) to opt out.
func NewDebug(options ...Option) *Debug {
	cfg := defaultConfig()
	cfg.EnableCanary = true
	cfg.EnableLeakCheck = true

	for _, opt := range options {
		opt(cfg)
	}

	top := newTopHeap(cfg)
	k := kingsley.New[topHeap](top, top)

	var stack heap.Heap = k

	if cfg.EnableCanary {
		stack = debugheap.New[heap.Heap](stack)
	}

	var tracer *debugheap.Tracer[heap.Heap]

	if cfg.EnableLeakCheck {
		tracer = debugheap.NewTracer[heap.Heap](stack)
		stack = tracer
	}

	return &Debug{
		Adapter: ansi.New[heap.Heap](stack),
		tracer:  tracer,
	}
}

// CheckLeaks returns every allocation still live through this composite, or
// nil if leak tracing was not enabled.
func (d *Debug) CheckLeaks() []debugheap.LeakInfo {
	if d.tracer == nil {
		return nil
	}

	return d.tracer.CheckLeaks()
}
