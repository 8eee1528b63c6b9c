// Package bench drives kernels through the Setup, timed Run and Teardown
// cycle and verifies every result.
package bench

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	rerrors "github.com/23skdu/reduced/internal/errors"
	"github.com/23skdu/reduced/internal/kernel"
	"github.com/23skdu/reduced/internal/logging"
	rmemory "github.com/23skdu/reduced/internal/memory"
	"github.com/23skdu/reduced/internal/metrics"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultIterations is used when Options.Iterations is not positive.
const DefaultIterations = 10

// Options controls a benchmark run.
type Options struct {
	Iterations int
	QuiesceGC  bool // hold the garbage collector off during timed runs
	Logger     *zerolog.Logger
}

// Result holds the timings and verification outcome for one kernel.
type Result struct {
	Kernel      string
	Size        int
	BytesPerRun int64
	SetupTime   time.Duration
	Times       []time.Duration
	Last        kernel.Complex
	Reference   kernel.Complex
	Failures    int
	MaxRelError float64
}

// Verified reports whether at least one run completed and every run matched
// the reference within tolerance.
func (r *Result) Verified() bool {
	return len(r.Times) > 0 && r.Failures == 0
}

func (r *Result) seconds() []float64 {
	s := make([]float64, len(r.Times))
	for i, d := range r.Times {
		s[i] = d.Seconds()
	}
	return s
}

// Min returns the fastest run.
func (r *Result) Min() time.Duration {
	if len(r.Times) == 0 {
		return 0
	}
	return secondsToDuration(floats.Min(r.seconds()))
}

// Max returns the slowest run.
func (r *Result) Max() time.Duration {
	if len(r.Times) == 0 {
		return 0
	}
	return secondsToDuration(floats.Max(r.seconds()))
}

// Mean returns the mean run time and its sample standard deviation.
func (r *Result) Mean() (mean, stddev time.Duration) {
	switch len(r.Times) {
	case 0:
		return 0, 0
	case 1:
		return r.Times[0], 0
	}
	m, sd := stat.MeanStdDev(r.seconds(), nil)
	return secondsToDuration(m), secondsToDuration(sd)
}

// Bandwidth is the bytes streamed per second by the fastest run.
func (r *Result) Bandwidth() float64 {
	best := r.Min()
	if best <= 0 {
		return 0
	}
	return float64(r.BytesPerRun) / best.Seconds()
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// Run sets k up, runs it opts.Iterations times and tears it down. Every run is
// checked against kernel.ReferenceOf(k) within the summation tolerance. The
// returned Result is never nil and holds whatever completed before an error.
// A cancelled ctx stops the loop between runs.
func Run(ctx context.Context, k kernel.Kernel, opts Options) (*Result, error) {
	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	logger := logging.DiscardLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("kernel", k.Name()).Int("n", k.Size()).Logger()

	res := &Result{
		Kernel:      k.Name(),
		Size:        k.Size(),
		BytesPerRun: k.BytesPerRun(),
		Reference:   kernel.ReferenceOf(k),
		Times:       make([]time.Duration, 0, iterations),
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	start := time.Now()
	if err := k.Setup(); err != nil {
		return res, fmt.Errorf("setup %s: %w", k.Name(), err)
	}
	defer k.Teardown()
	res.SetupTime = time.Since(start)
	logger.Info().Dur("setup", res.SetupTime).Int("iterations", iterations).Msg("Benchmark started")

	if opts.QuiesceGC {
		guard := rmemory.NewGCGuard(&logger)
		guard.Engage()
		defer guard.Release()
	}

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			logger.Warn().Int("completed", i).Msg("Benchmark cancelled")
			return res, err
		}

		t0 := time.Now()
		got, err := k.Run()
		elapsed := time.Since(t0)
		if err != nil {
			return res, fmt.Errorf("run %s iteration %d: %w", k.Name(), i, err)
		}
		res.Times = append(res.Times, elapsed)
		res.Last = got

		relErr := kernel.RelativeError(got, res.Reference)
		res.MaxRelError = math.Max(res.MaxRelError, relErr)
		if !kernel.WithinTolerance(got, res.Reference, k.Size()) {
			res.Failures++
			metrics.VerificationFailuresTotal.WithLabelValues(k.Name()).Inc()
			logger.Warn().
				Int("iteration", i).
				Stringer("got", got).
				Stringer("want", res.Reference).
				Float64("rel_error", relErr).
				Msg("Result outside tolerance")
		}
	}

	mean, _ := res.Mean()
	logger.Info().
		Dur("min", res.Min()).
		Dur("mean", mean).
		Float64("bandwidth_gbs", res.Bandwidth()/1e9).
		Int("failures", res.Failures).
		Msg("Benchmark complete")

	if res.Failures > 0 {
		return res, rerrors.NewValidationError("Verify", "kernel result outside tolerance").
			WithContext("kernel", k.Name()).
			WithContext("failures", res.Failures).
			WithContext("max_rel_error", res.MaxRelError)
	}
	return res, nil
}

// Report writes a human readable summary of res to w.
func Report(w io.Writer, res *Result) {
	mean, stddev := res.Mean()
	status := "PASS"
	if !res.Verified() {
		status = "FAIL"
	}

	fmt.Fprintf(w, "\n--- %s ---\n", res.Kernel)
	fmt.Fprintf(w, "Size:        %d\n", res.Size)
	fmt.Fprintf(w, "Iterations:  %d\n", len(res.Times))
	fmt.Fprintf(w, "Setup:       %v\n", res.SetupTime)
	fmt.Fprintf(w, "Min:         %v\n", res.Min())
	fmt.Fprintf(w, "Max:         %v\n", res.Max())
	fmt.Fprintf(w, "Mean:        %v (stddev %v)\n", mean, stddev)
	fmt.Fprintf(w, "Bandwidth:   %.2f GB/s\n", res.Bandwidth()/1e9)
	fmt.Fprintf(w, "Result:      %v\n", res.Last)
	fmt.Fprintf(w, "Reference:   %v\n", res.Reference)
	fmt.Fprintf(w, "Rel Error:   %.3g\n", res.MaxRelError)
	fmt.Fprintf(w, "Verify:      %s\n", status)
}
