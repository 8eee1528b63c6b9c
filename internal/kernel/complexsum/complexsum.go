// Package complexsum implements the complex_sum_soa benchmark kernel: N
// complex numbers stored as separate real and imaginary float64 columns are
// reduced to a single complex sum.
//
// The reduction fans out over contiguous chunks and combines the partial sums
// at the end. The grouping of additions differs from a serial loop, so results
// are compared against Expect with a tolerance rather than for equality.
package complexsum

import (
	"math"
	"time"

	"github.com/23skdu/reduced/internal/concurrency"
	rerrors "github.com/23skdu/reduced/internal/errors"
	"github.com/23skdu/reduced/internal/kernel"
	"github.com/23skdu/reduced/internal/logging"
	rmemory "github.com/23skdu/reduced/internal/memory"
	"github.com/23skdu/reduced/internal/metrics"
	"github.com/23skdu/reduced/internal/simd"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
)

const (
	// Name identifies the kernel in reports and metrics.
	Name = "complex_sum_soa"
	// DefaultSize is the canonical problem size, 2^30 elements.
	DefaultSize = 1 << 30
)

// Option configures a Kernel.
type Option func(*Kernel)

// WithSize sets the problem size N.
func WithSize(n int) Option {
	return func(k *Kernel) { k.n = n }
}

// WithFill selects the initialisation profile.
func WithFill(f Fill) Option {
	return func(k *Kernel) { k.fill = f }
}

// WithWorkers caps the number of reduction workers. 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(k *Kernel) { k.workers = n }
}

// WithMinChunk sets the smallest number of elements handed to one worker.
func WithMinChunk(n int) Option {
	return func(k *Kernel) { k.minChunk = n }
}

// WithAllocator sets the allocator the columns are drawn from.
func WithAllocator(mem memory.Allocator) Option {
	return func(k *Kernel) { k.base = mem }
}

// WithMemoryLimit caps the bytes Setup may allocate. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(k *Kernel) { k.limit = bytes }
}

// WithLogger sets the kernel logger.
func WithLogger(l zerolog.Logger) Option {
	return func(k *Kernel) { k.logger = l }
}

// Kernel is the complex_sum_soa kernel. The zero value is not usable; build
// one with New.
type Kernel struct {
	n        int
	fill     Fill
	workers  int
	minChunk int
	base     memory.Allocator
	limit    int64
	logger   zerolog.Logger

	alloc   *rmemory.TrackingAllocator
	reducer concurrency.PairReducer

	// nil outside the Setup/Teardown window
	real *rmemory.Float64Column
	imag *rmemory.Float64Column
}

var (
	_ kernel.Kernel     = (*Kernel)(nil)
	_ kernel.Referencer = (*Kernel)(nil)
)

// New builds a kernel with no data allocated.
func New(opts ...Option) (*Kernel, error) {
	k := &Kernel{
		n:      DefaultSize,
		fill:   FillUniform,
		logger: logging.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(k)
	}

	switch {
	case k.n < 1:
		return nil, rerrors.NewValidationError("New", "problem size must be positive").
			WithContext("size", k.n)
	case k.fill != FillUniform && k.fill != FillRamp:
		return nil, rerrors.NewValidationError("New", "unknown fill profile").
			WithContext("fill", int(k.fill))
	case k.workers < 0:
		return nil, rerrors.NewValidationError("New", "worker count must not be negative").
			WithContext("workers", k.workers)
	case k.minChunk < 0:
		return nil, rerrors.NewValidationError("New", "minimum chunk must not be negative").
			WithContext("min_chunk", k.minChunk)
	case k.limit < 0:
		return nil, rerrors.NewValidationError("New", "memory limit must not be negative").
			WithContext("limit", k.limit)
	}

	if k.minChunk == 0 {
		k.minChunk = concurrency.DefaultMinChunk
	}
	k.alloc = rmemory.NewTrackingAllocator(k.base, k.limit)
	k.reducer = concurrency.PairReducer{
		Workers:  k.workers,
		MinChunk: k.minChunk,
		Kernel:   simd.SumPairFloat64,
	}
	k.logger = k.logger.With().Str("kernel", Name).Int("n", k.n).Logger()
	return k, nil
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return Name }

// Size returns N.
func (k *Kernel) Size() int { return k.n }

// Fill returns the initialisation profile.
func (k *Kernel) Fill() Fill { return k.fill }

// BytesPerRun is the 16*N bytes streamed by one Run.
func (k *Kernel) BytesPerRun() int64 { return 16 * int64(k.n) }

// Ready reports whether Setup has completed and Teardown has not been called.
func (k *Kernel) Ready() bool {
	return k.real != nil && k.imag != nil
}

// Setup allocates both columns and fills them. On failure nothing stays
// allocated and the kernel remains uninitialised.
func (k *Kernel) Setup() error {
	start := time.Now()
	if k.Ready() {
		return k.fail("setup", rerrors.NewStateError("Setup", "kernel is already set up; call Teardown first"))
	}

	colBytes, ok := rmemory.Float64ColumnBytes(k.n)
	if !ok || int64(colBytes) > math.MaxInt64/2 {
		return k.fail("setup", rerrors.NewAllocationError("Setup", "problem size overflows addressable memory").
			WithContext("size", k.n))
	}
	if need := 2 * int64(colBytes); !k.alloc.Fits(need) {
		metrics.AllocatorRejectionsTotal.Inc()
		return k.fail("setup", rerrors.NewAllocationError("Setup", "data arrays exceed the memory limit").
			WithContext("requested", need).
			WithContext("limit", k.alloc.Limit()))
	}

	re, err := rmemory.NewFloat64Column(k.alloc, k.n)
	if err != nil {
		return k.fail("setup", err)
	}
	im, err := rmemory.NewFloat64Column(k.alloc, k.n)
	if err != nil {
		re.Release()
		return k.fail("setup", err)
	}

	reVals, imVals := re.Values(), im.Values()
	concurrency.ParallelFor(k.n, k.workers, k.minChunk, func(r concurrency.Range) {
		fillRange(k.fill, k.n, r.Lo, reVals[r.Lo:r.Hi], imVals[r.Lo:r.Hi])
	})
	k.real, k.imag = re, im

	elapsed := time.Since(start)
	k.observe("setup", "ok", elapsed)
	metrics.KernelResidentBytes.WithLabelValues(Name).Set(float64(k.alloc.Live()))
	k.logger.Debug().
		Str("fill", k.fill.String()).
		Int64("bytes", k.alloc.Live()).
		Dur("duration", elapsed).
		Msg("Kernel data allocated")
	return nil
}

// Run reduces both columns once. It fails with a state error unless the
// kernel is set up, and never modifies the data.
func (k *Kernel) Run() (kernel.Complex, error) {
	if !k.Ready() {
		return kernel.Complex{}, k.fail("run", rerrors.NewStateError("Run", "kernel is not set up"))
	}

	start := time.Now()
	re, im := k.reducer.Reduce(k.real.Values(), k.imag.Values())
	elapsed := time.Since(start)

	k.observe("run", "ok", elapsed)
	metrics.KernelBytesStreamedTotal.WithLabelValues(Name).Add(float64(k.BytesPerRun()))
	metrics.ReductionWorkers.Set(float64(k.reducer.EffectiveWorkers(k.n)))
	k.logger.Debug().
		Float64("real", re).
		Float64("imag", im).
		Dur("duration", elapsed).
		Msg("Kernel run complete")
	return kernel.Complex{Real: re, Imag: im}, nil
}

// Teardown releases both columns. Calling it when nothing is allocated is a no-op.
func (k *Kernel) Teardown() {
	if k.real == nil && k.imag == nil {
		return
	}
	start := time.Now()
	k.real.Release()
	k.imag.Release()
	k.real, k.imag = nil, nil

	k.observe("teardown", "ok", time.Since(start))
	metrics.KernelResidentBytes.WithLabelValues(Name).Set(float64(k.alloc.Live()))
	k.logger.Debug().Int64("peak_bytes", k.alloc.Peak()).Msg("Kernel data released")
}

// Expect returns (2048, 2048), the exact sum for FillUniform at any N. It is
// independent of the kernel state and of N.
func (k *Kernel) Expect() kernel.Complex {
	const v = 2.0 * 1024.0
	return kernel.Complex{Real: v, Imag: v}
}

// Reference returns the exact sum of the configured fill profile: Expect for
// FillUniform and (1024*(N+1), 1024*(N+1)) for FillRamp.
func (k *Kernel) Reference() kernel.Complex {
	if k.fill == FillRamp {
		v := 1024.0 * float64(k.n+1)
		return kernel.Complex{Real: v, Imag: v}
	}
	return k.Expect()
}

func (k *Kernel) observe(op, status string, d time.Duration) {
	metrics.KernelOperationsTotal.WithLabelValues(Name, op, status).Inc()
	metrics.KernelDurationSeconds.WithLabelValues(Name, op).Observe(d.Seconds())
}

func (k *Kernel) fail(op string, err error) error {
	metrics.KernelOperationsTotal.WithLabelValues(Name, op, "error").Inc()
	k.logger.Error().Err(err).Str("op", op).Msg("Kernel operation failed")
	return err
}
