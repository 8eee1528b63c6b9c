package bench

import (
	"bytes"
	"context"
	"errors"
	"runtime/debug"
	"testing"
	"time"

	rerrors "github.com/23skdu/reduced/internal/errors"
	"github.com/23skdu/reduced/internal/kernel"
	"github.com/23skdu/reduced/internal/kernel/complexsum"
	"github.com/23skdu/reduced/internal/logging"
	"github.com/23skdu/reduced/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKernel struct {
	name     string
	results  []kernel.Complex
	setupErr error
	runErr   error
	onRun    func(call int)

	setups, runs, teardowns int
}

func (f *fakeKernel) Name() string       { return f.name }
func (f *fakeKernel) Size() int          { return 8 }
func (f *fakeKernel) BytesPerRun() int64 { return 128 }
func (f *fakeKernel) Expect() kernel.Complex {
	return kernel.Complex{Real: 1, Imag: 1}
}

func (f *fakeKernel) Setup() error {
	f.setups++
	return f.setupErr
}

func (f *fakeKernel) Run() (kernel.Complex, error) {
	call := f.runs
	f.runs++
	if f.onRun != nil {
		f.onRun(call)
	}
	if f.runErr != nil {
		return kernel.Complex{}, f.runErr
	}
	if len(f.results) == 0 {
		return f.Expect(), nil
	}
	return f.results[call%len(f.results)], nil
}

func (f *fakeKernel) Teardown() { f.teardowns++ }

func TestRun_AllIterationsVerified(t *testing.T) {
	k := &fakeKernel{name: "fake_ok"}
	res, err := Run(context.Background(), k, Options{Iterations: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, k.setups)
	assert.Equal(t, 5, k.runs)
	assert.Equal(t, 1, k.teardowns)
	assert.Len(t, res.Times, 5)
	assert.True(t, res.Verified())
	assert.Equal(t, "fake_ok", res.Kernel)
	assert.Equal(t, int64(128), res.BytesPerRun)
	assert.Equal(t, k.Expect(), res.Reference)
	assert.Zero(t, res.MaxRelError)
}

func TestRun_DefaultIterations(t *testing.T) {
	k := &fakeKernel{name: "fake_default"}
	res, err := Run(context.Background(), k, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultIterations, k.runs)
	assert.Len(t, res.Times, DefaultIterations)
}

func TestRun_VerificationFailure(t *testing.T) {
	k := &fakeKernel{
		name:    "fake_wrong",
		results: []kernel.Complex{{Real: 1, Imag: 1}, {Real: 1.5, Imag: 1}},
	}
	before := testutil.ToFloat64(metrics.VerificationFailuresTotal.WithLabelValues("fake_wrong"))

	res, err := Run(context.Background(), k, Options{Iterations: 4})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrValidation))
	assert.Equal(t, 2, res.Failures)
	assert.False(t, res.Verified())
	assert.InDelta(t, 0.5, res.MaxRelError, 1e-12)
	assert.Equal(t, 1, k.teardowns)

	after := testutil.ToFloat64(metrics.VerificationFailuresTotal.WithLabelValues("fake_wrong"))
	assert.Equal(t, 2.0, after-before)
}

func TestRun_SetupError(t *testing.T) {
	setupErr := rerrors.NewAllocationError("Setup", "out of memory")
	k := &fakeKernel{name: "fake_setup", setupErr: setupErr}

	res, err := Run(context.Background(), k, Options{Iterations: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrAllocation))
	assert.Zero(t, k.runs)
	assert.Zero(t, k.teardowns)
	assert.Empty(t, res.Times)
	assert.False(t, res.Verified())
}

func TestRun_RunError(t *testing.T) {
	k := &fakeKernel{name: "fake_run", runErr: rerrors.NewStateError("Run", "not set up")}

	_, err := Run(context.Background(), k, Options{Iterations: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrState))
	assert.Equal(t, 1, k.runs)
	assert.Equal(t, 1, k.teardowns)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	k := &fakeKernel{name: "fake_cancel", onRun: func(call int) {
		if call == 1 {
			cancel()
		}
	}}

	res, err := Run(ctx, k, Options{Iterations: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, k.runs)
	assert.Len(t, res.Times, 2)
	assert.Equal(t, 1, k.teardowns)
}

func TestRun_CancelledBeforeSetup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	k := &fakeKernel{name: "fake_precancel"}

	_, err := Run(ctx, k, Options{Iterations: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, k.setups)
	assert.Zero(t, k.teardowns)
}

func TestRun_ComplexSum(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)

	for _, fill := range []complexsum.Fill{complexsum.FillUniform, complexsum.FillRamp} {
		k, err := complexsum.New(
			complexsum.WithSize(100003),
			complexsum.WithFill(fill),
			complexsum.WithWorkers(4),
			complexsum.WithMinChunk(1024),
			complexsum.WithAllocator(alloc),
		)
		require.NoError(t, err)

		var logs bytes.Buffer
		logger, err := logging.NewLogger(logging.Config{Format: "json", Level: "info", Output: &logs})
		require.NoError(t, err)

		res, err := Run(context.Background(), k, Options{Iterations: 3, Logger: &logger})
		require.NoError(t, err, fill.String())
		assert.True(t, res.Verified())
		assert.Equal(t, int64(16*100003), res.BytesPerRun)
		assert.Contains(t, logs.String(), "Benchmark complete")
		assert.False(t, k.Ready(), "Run must tear the kernel down")
	}
}

func TestResult_Stats(t *testing.T) {
	res := &Result{
		BytesPerRun: 1000,
		Times:       []time.Duration{2 * time.Millisecond, 1 * time.Millisecond, 3 * time.Millisecond},
	}
	assert.Equal(t, time.Millisecond, res.Min())
	assert.Equal(t, 3*time.Millisecond, res.Max())
	mean, stddev := res.Mean()
	assert.Equal(t, 2*time.Millisecond, mean)
	assert.Equal(t, time.Millisecond, stddev)
	assert.InDelta(t, 1e6, res.Bandwidth(), 1e-6)
}

func TestResult_EmptyStats(t *testing.T) {
	res := &Result{BytesPerRun: 1000}
	assert.Zero(t, res.Min())
	assert.Zero(t, res.Max())
	mean, stddev := res.Mean()
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
	assert.Zero(t, res.Bandwidth())
	assert.False(t, res.Verified())

	res.Times = []time.Duration{5 * time.Millisecond}
	mean, stddev = res.Mean()
	assert.Equal(t, 5*time.Millisecond, mean)
	assert.Zero(t, stddev)
}

func TestReport(t *testing.T) {
	res := &Result{
		Kernel:      "complex_sum_soa",
		Size:        4,
		BytesPerRun: 64,
		Times:       []time.Duration{time.Microsecond},
		Last:        kernel.Complex{Real: 2048, Imag: 2048},
		Reference:   kernel.Complex{Real: 2048, Imag: 2048},
	}
	var buf bytes.Buffer
	Report(&buf, res)

	out := buf.String()
	assert.Contains(t, out, "--- complex_sum_soa ---")
	assert.Contains(t, out, "Size:        4")
	assert.Contains(t, out, "Result:      (2048, 2048)")
	assert.Contains(t, out, "Verify:      PASS")

	res.Failures = 1
	buf.Reset()
	Report(&buf, res)
	assert.Contains(t, buf.String(), "Verify:      FAIL")
}

func TestRun_QuiesceGC(t *testing.T) {
	orig := debug.SetGCPercent(100)
	defer debug.SetGCPercent(orig)

	var during int
	k := &fakeKernel{name: "fake_gc", onRun: func(int) {
		during = debug.SetGCPercent(-1)
	}}
	_, err := Run(context.Background(), k, Options{Iterations: 1, QuiesceGC: true})
	require.NoError(t, err)
	assert.Equal(t, -1, during)
	assert.Equal(t, 100, debug.SetGCPercent(100), "GOGC restored after the run")
}
