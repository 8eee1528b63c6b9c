package simd

// sumFloat64Unrolled4x sums x with four independent accumulators so the adds
// pipeline instead of serializing on one register.
func sumFloat64Unrolled4x(x []float64) float64 {
	var sum0, sum1, sum2, sum3 float64
	n := len(x)
	i := 0
	for ; i <= n-4; i += 4 {
		sum0 += x[i]
		sum1 += x[i+1]
		sum2 += x[i+2]
		sum3 += x[i+3]
	}
	for ; i < n; i++ {
		sum0 += x[i]
	}
	return (sum0 + sum1) + (sum2 + sum3)
}

// sumPairUnrolled4x reduces two equal-length columns in a single pass.
func sumPairUnrolled4x(a, b []float64) (float64, float64) {
	if len(a) != len(b) {
		panic("simd: column length mismatch")
	}
	var a0, a1, a2, a3 float64
	var b0, b1, b2, b3 float64
	n := len(a)
	b = b[:n]
	i := 0
	for ; i <= n-4; i += 4 {
		a0 += a[i]
		a1 += a[i+1]
		a2 += a[i+2]
		a3 += a[i+3]
		b0 += b[i]
		b1 += b[i+1]
		b2 += b[i+2]
		b3 += b[i+3]
	}
	for ; i < n; i++ {
		a0 += a[i]
		b0 += b[i]
	}
	return (a0 + a1) + (a2 + a3), (b0 + b1) + (b2 + b3)
}
