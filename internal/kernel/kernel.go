// Package kernel defines the contract between reduction kernels and the
// benchmark harness that drives them.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Complex is a complex result held as separate real and imaginary parts.
type Complex struct {
	Real float64
	Imag float64
}

func (c Complex) String() string {
	return fmt.Sprintf("(%g, %g)", c.Real, c.Imag)
}

// Kernel is one benchmark kernel. Setup, Run and Teardown on the same
// instance must not be called concurrently.
type Kernel interface {
	// Name identifies the kernel in reports and metrics.
	Name() string
	// Size is the configured problem size.
	Size() int
	// BytesPerRun is the number of bytes one Run streams from memory.
	BytesPerRun() int64
	// Setup allocates and initialises the benchmark data.
	Setup() error
	// Run executes the benchmark once.
	Run() (Complex, error)
	// Teardown releases the benchmark data. Calling it twice is a no-op.
	Teardown()
	// Expect returns the analytically correct result.
	Expect() Complex
}

// Epsilon is the float64 machine epsilon.
const Epsilon = 0x1p-52

// toleranceFactor scales the n*eps bound of a reordered summation.
const toleranceFactor = 4

// RelativeTolerance is the accepted relative error of an n-term summation
// under any grouping of the additions.
func RelativeTolerance(n int) float64 {
	if n < 1 {
		n = 1
	}
	return toleranceFactor * float64(n) * Epsilon
}

// WithinTolerance reports whether got matches want component-wise within the
// n-term summation tolerance.
func WithinTolerance(got, want Complex, n int) bool {
	rel := RelativeTolerance(n)
	return scalar.EqualWithinAbsOrRel(got.Real, want.Real, Epsilon, rel) &&
		scalar.EqualWithinAbsOrRel(got.Imag, want.Imag, Epsilon, rel)
}

// RelativeError is the larger component-wise relative error of got against want.
func RelativeError(got, want Complex) float64 {
	return math.Max(relErr(got.Real, want.Real), relErr(got.Imag, want.Imag))
}

func relErr(got, want float64) float64 {
	if want == 0 {
		return math.Abs(got)
	}
	return math.Abs(got-want) / math.Abs(want)
}

// Referencer is implemented by kernels whose exact result depends on
// configuration that Expect does not describe.
type Referencer interface {
	Reference() Complex
}

// ReferenceOf returns the value a run of k is verified against: Reference
// when k implements Referencer, Expect otherwise.
func ReferenceOf(k Kernel) Complex {
	if r, ok := k.(Referencer); ok {
		return r.Reference()
	}
	return k.Expect()
}
