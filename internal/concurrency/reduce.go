package concurrency

import (
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/cpu"
)

// DefaultMinChunk is the smallest range handed to a worker. Below this the
// goroutine handoff costs more than the streaming read it saves.
const DefaultMinChunk = 64 * 1024

// Range is the half-open index interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.Hi - r.Lo
}

// Partition splits [0, n) into at most workers contiguous ranges of nearly
// equal size, none shorter than minChunk unless n itself is. Ranges are
// returned in ascending order and cover [0, n) exactly. n <= 0 yields nil.
func Partition(n, workers, minChunk int) []Range {
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if maxParts := n / minChunk; workers > maxParts {
		workers = maxParts
	}
	if workers < 1 {
		workers = 1
	}

	ranges := make([]Range, workers)
	base, extra := n/workers, n%workers
	lo := 0
	for i := range ranges {
		size := base
		if i < extra {
			size++
		}
		ranges[i] = Range{Lo: lo, Hi: lo + size}
		lo += size
	}
	return ranges
}

// ParallelFor runs fn once per range of Partition(n, workers, minChunk) and
// waits for all of them. workers <= 0 means runtime.GOMAXPROCS(0).
func ParallelFor(n, workers, minChunk int, fn func(Range)) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ranges := Partition(n, workers, minChunk)
	if len(ranges) == 1 {
		fn(ranges[0])
		return
	}
	var g errgroup.Group
	for _, rg := range ranges {
		g.Go(func() error {
			fn(rg)
			return nil
		})
	}
	_ = g.Wait()
}

// PairKernel reduces one chunk of two columns.
type PairKernel func(a, b []float64) (float64, float64)

// paddedPair keeps each worker's partial on its own cache line.
type paddedPair struct {
	a, b float64
	_    cpu.CacheLinePad
}

// PairReducer fans a two-column reduction out over contiguous chunks and
// combines the partials in chunk order, so a fixed worker count always
// produces the same grouping of additions.
type PairReducer struct {
	Workers  int // 0 means runtime.GOMAXPROCS(0)
	MinChunk int // 0 means DefaultMinChunk
	Kernel   PairKernel
}

// EffectiveWorkers returns the number of workers a reduction of n elements uses.
func (r PairReducer) EffectiveWorkers(n int) int {
	return len(Partition(n, r.workers(), r.minChunk()))
}

func (r PairReducer) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (r PairReducer) minChunk() int {
	if r.MinChunk > 0 {
		return r.MinChunk
	}
	return DefaultMinChunk
}

// Reduce returns the totals of a and b. It panics if the lengths differ.
func (r PairReducer) Reduce(a, b []float64) (float64, float64) {
	if len(a) != len(b) {
		panic("concurrency: column length mismatch")
	}
	ranges := Partition(len(a), r.workers(), r.minChunk())
	switch len(ranges) {
	case 0:
		return 0, 0
	case 1:
		return r.Kernel(a, b)
	}

	partials := make([]paddedPair, len(ranges))
	var g errgroup.Group
	g.SetLimit(len(ranges))
	for i, rg := range ranges {
		g.Go(func() error {
			pa, pb := r.Kernel(a[rg.Lo:rg.Hi], b[rg.Lo:rg.Hi])
			partials[i].a, partials[i].b = pa, pb
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	var sa, sb float64
	for i := range partials {
		sa += partials[i].a
		sb += partials[i].b
	}
	return sa, sb
}
