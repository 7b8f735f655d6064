package composite

import (
	"github.com/heaplayers-go/heaplayers/internal/ansi"
	"github.com/heaplayers-go/heaplayers/internal/arena"
	"github.com/heaplayers-go/heaplayers/internal/header"
	"github.com/heaplayers-go/heaplayers/internal/kingsley"
	"github.com/heaplayers-go/heaplayers/internal/source"
)

// topHeap is the backing heap every class's freelist (and the oversize
// path) ultimately draws from: a size-tagged Zone arena over raw OS memory,
// matching libkingsley.cpp's
// TopHeap = SizeHeap<UniqueHeap<ZoneHeap<MmapHeap,65536>>> (the UniqueHeap
// guard is applied at the process-wide singleton in process.go, not here,
// since an ordinary composite factory must produce independent instances).
type topHeap = *header.SizeHeader[*arena.Zone[*source.Mmap]]

func newTopHeap(cfg *Config) topHeap {
	src := source.New()
	zone := arena.NewZone[*source.Mmap](src, cfg.ChunkSize, cfg.Alignment)

	return header.New[*arena.Zone[*source.Mmap]](zone)
}

// General is the general-purpose allocator composite (spec.md §2's primary
// composite example): ANSIWrapper<KingsleyHeap<TopHeap, TopHeap>>, grounded
// directly on libkingsley.cpp. Little and Big share the same topHeap
// instance, exactly as the original's UniqueHeap<ZoneHeap<MmapHeap,65536>>
// resolves to a single shared instance for every bin and the big-object
// path (uniqueheap.h keys its static instance by SuperHeap type, so every
// TopHeap reference in KingsleyHeap<AdaptHeap<DLList,TopHeap>,TopHeap>
// names the same object); internal/seg.New's own doc comment notes passing
// the same value for both Super and Big is how a caller collapses them.
type General struct {
	*ansi.Adapter[*kingsley.Heap[topHeap]]
}

// NewGeneral constructs a General composite.
func NewGeneral(options ...Option) *General {
	cfg := resolve(options)

	top := newTopHeap(cfg)
	k := kingsley.New[topHeap](top, top)

	return &General{Adapter: ansi.New[*kingsley.Heap[topHeap]](k)}
}
