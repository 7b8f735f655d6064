// Package composite assembles the building-block layers in internal/heap,
// internal/arena, internal/seg, internal/kingsley, internal/header,
// internal/concurrent, internal/ansi, and internal/debugheap into the
// canonical allocators spec.md §2 calls "composite examples." Grounded on
// original_source/wrappers/libkingsley.cpp's real-world layer stack
// (ANSIWrapper<KingsleyHeap<AdaptHeap<DLList,TopHeap>,TopHeap>>, TopHeap =
// SizeHeap<UniqueHeap<ZoneHeap<MmapHeap,65536>>>) and assembled the way the
// teacher's internal/allocator.Initialize/Config/Option pattern configures
// an allocator kind.
package composite

// Config tunes a composite's construction (spec.md §6: "tuning parameters...
// are compile-time template parameters of the composite"), mirrored here as
// ordinary constructor parameters assembled through functional options, in
// the style of internal/allocator.Config/Option.
type Config struct {
	// ChunkSize is the arena's chunk size backing every composite (the
	// ZoneHeap<MmapHeap,65536> default from libkingsley.cpp).
	ChunkSize uintptr

	// Alignment is the layer stack's own alignment constraint, combined via
	// GCD with the source's natural alignment.
	Alignment uintptr

	// ThreadSlots is the number of Kingsley instances a PerThreadFixed
	// composite hashes goroutines across (1 when zero or negative).
	// PerThreadLazy does not consult it.
	ThreadSlots int

	// EnableLeakCheck wraps the composite with a backtrace-capturing leak
	// tracer (internal/debugheap.Tracer).
	EnableLeakCheck bool

	// EnableCanary wraps the composite with a corruption-detecting canary
	// layer (internal/debugheap.Canary).
	EnableCanary bool
}

// Option mutates a Config during construction.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		ChunkSize:       65536,
		Alignment:       0, // 0 defers to heap.NaturalAlignment at the arena layer
		ThreadSlots:     0, // 0 gives PerThreadFixed a single slot
		EnableLeakCheck: false,
		EnableCanary:    false,
	}
}

// WithChunkSize overrides the arena chunk size.
func WithChunkSize(size uintptr) Option {
	return func(c *Config) { c.ChunkSize = size }
}

// WithAlignment overrides the layer stack's own alignment constraint.
func WithAlignment(alignment uintptr) Option {
	return func(c *Config) { c.Alignment = alignment }
}

// WithThreadSlots sets the number of slots a PerThreadFixed composite
// hashes goroutines across.
func WithThreadSlots(n int) Option {
	return func(c *Config) { c.ThreadSlots = n }
}

// WithLeakCheck enables leak tracing on a Debug composite.
func WithLeakCheck(enabled bool) Option {
	return func(c *Config) { c.EnableLeakCheck = enabled }
}

// WithCanary enables canary corruption detection on a Debug composite.
func WithCanary(enabled bool) Option {
	return func(c *Config) { c.EnableCanary = enabled }
}

func resolve(options []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range options {
		opt(cfg)
	}

	return cfg
}
