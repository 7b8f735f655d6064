// Command heaplayers-bench drives a composite allocator under concurrent
// load and reports the resulting throughput, grounded on spec.md §8's S9
// concurrent-stress scenario ("K threads, each performing M allocate/free
// pairs of uniformly random sizes").
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heaplayers-go/heaplayers/internal/composite"
	"github.com/heaplayers-go/heaplayers/internal/heap"
)

func main() {
	var (
		kind        string
		goroutines  int
		pairs       int
		minSize     int
		maxSize     int
		showVersion bool
	)

	flag.StringVar(&kind, "composite", "general", "composite to stress: general, perthread-fixed, perthread-lazy, debug")
	flag.IntVar(&goroutines, "goroutines", 8, "number of concurrent goroutines (spec.md S9: K threads)")
	flag.IntVar(&pairs, "pairs", 100000, "allocate/free pairs per goroutine (spec.md S9: M pairs)")
	flag.IntVar(&minSize, "min-size", 1, "minimum allocation size in bytes")
	flag.IntVar(&maxSize, "max-size", 65536, "maximum allocation size in bytes")
	flag.BoolVar(&showVersion, "version", false, "show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "heaplayers-bench: concurrent allocate/free stress driver\n\n")
		fmt.Fprintf(os.Stderr, "Usage: heaplayers-bench [flags]\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Println("heaplayers-bench 0.1.0")
		os.Exit(0)
	}

	if goroutines <= 0 || pairs <= 0 || minSize <= 0 || maxSize < minSize {
		flag.Usage()
		os.Exit(1)
	}

	h, err := buildComposite(kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, "heaplayers-bench:", err)
		os.Exit(1)
	}

	result := run(h, goroutines, pairs, minSize, maxSize)

	fmt.Printf("composite:       %s\n", kind)
	fmt.Printf("goroutines:      %d\n", goroutines)
	fmt.Printf("pairs/goroutine: %d\n", pairs)
	fmt.Printf("size range:      [%d, %d]\n", minSize, maxSize)
	fmt.Printf("total pairs:     %d\n", result.totalPairs)
	fmt.Printf("failed allocs:   %d\n", result.failedAllocs)
	fmt.Printf("elapsed:         %s\n", result.elapsed)
	fmt.Printf("throughput:      %.0f pairs/sec\n", float64(result.totalPairs)/result.elapsed.Seconds())

	if dbg, ok := h.(*composite.Debug); ok {
		leaks := dbg.CheckLeaks()
		fmt.Printf("leaks:           %d\n", len(leaks))
	}

	if result.failedAllocs > 0 {
		os.Exit(1)
	}
}

func buildComposite(kind string) (heap.Heap, error) {
	switch kind {
	case "general":
		return composite.NewGeneral(), nil
	case "perthread-fixed":
		return composite.NewPerThreadFixed(composite.WithThreadSlots(8)), nil
	case "perthread-lazy":
		return composite.NewPerThreadLazy(), nil
	case "debug":
		return composite.NewDebug(), nil
	default:
		return nil, fmt.Errorf("unknown composite %q (want general, perthread-fixed, perthread-lazy, or debug)", kind)
	}
}

type stressResult struct {
	totalPairs   int64
	failedAllocs int64
	elapsed      time.Duration
}

// run reproduces spec.md S9: each goroutine performs its own allocate/free
// pairs at uniformly random sizes, holding no block across iterations, so
// distinct goroutines never race on the same pointer.
func run(h heap.Heap, goroutines, pairs, minSize, maxSize int) stressResult {
	var (
		wg      sync.WaitGroup
		failed  int64
		started = time.Now()
	)

	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(seed int64) {
			defer wg.Done()

			rnd := rand.New(rand.NewSource(seed))
			span := maxSize - minSize + 1

			for i := 0; i < pairs; i++ {
				size := uintptr(minSize + rnd.Intn(span))

				p := h.Alloc(size)
				if p == nil {
					atomic.AddInt64(&failed, 1)

					continue
				}

				h.Free(p)
			}
		}(int64(g) + 1)
	}

	wg.Wait()

	return stressResult{
		totalPairs:   int64(goroutines) * int64(pairs),
		failedAllocs: failed,
		elapsed:      time.Since(started),
	}
}
