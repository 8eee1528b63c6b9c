// Package simd provides the float64 summation kernels used by reductions,
// selected once at startup from the detected CPU features.
package simd

func init() {
	detectCPU()
	initializeDispatch()
}

// SumFloat64 returns the sum of x. The grouping of additions depends on the
// active implementation, so results may differ in the last bits between them.
func SumFloat64(x []float64) float64 {
	return currentDispatch.Load().Sum(x)
}

// SumPairFloat64 sums two equal-length columns, returning both totals.
// It panics if the lengths differ.
func SumPairFloat64(a, b []float64) (float64, float64) {
	return currentDispatch.Load().SumPair(a, b)
}
