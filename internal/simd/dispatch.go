package simd

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/23skdu/reduced/internal/metrics"
	"gonum.org/v1/gonum/floats"
)

type sumFunc func(x []float64) float64

type sumPairFunc func(a, b []float64) (float64, float64)

// ImplementationDispatch holds the summation kernels for one implementation
type ImplementationDispatch struct {
	Name    string
	Sum     sumFunc
	SumPair sumPairFunc
}

// gonum's floats.Sum runs an assembly kernel on amd64; on other targets it
// falls back to its own unrolled Go loop.
func sumPairGonum(a, b []float64) (float64, float64) {
	if len(a) != len(b) {
		panic("simd: column length mismatch")
	}
	return floats.Sum(a), floats.Sum(b)
}

// Global dispatch table - one per implementation
var dispatchTable = map[string]ImplementationDispatch{
	"avx512":  {Name: "avx512", Sum: floats.Sum, SumPair: sumPairGonum},
	"avx2":    {Name: "avx2", Sum: floats.Sum, SumPair: sumPairGonum},
	"sse2":    {Name: "sse2", Sum: floats.Sum, SumPair: sumPairGonum},
	"neon":    {Name: "neon", Sum: sumFloat64Unrolled4x, SumPair: sumPairUnrolled4x},
	"generic": {Name: "generic", Sum: sumFloat64Unrolled4x, SumPair: sumPairUnrolled4x},
}

var currentDispatch atomic.Pointer[ImplementationDispatch]

// initializeDispatch installs the kernels for the detected implementation.
func initializeDispatch() {
	dispatch, exists := dispatchTable[implementation]
	if !exists {
		dispatch = dispatchTable["generic"]
		implementation = "generic"
	}
	currentDispatch.Store(&dispatch)
	metrics.SimdDispatchCount.WithLabelValues(dispatch.Name).Inc()
}

// Implementations lists the registered implementation names.
func Implementations() []string {
	names := make([]string, 0, len(dispatchTable))
	for name := range dispatchTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Use switches the active implementation. "auto" restores the detected one.
// It must not be called while a reduction is in flight.
func Use(name string) error {
	if name == "auto" || name == "" {
		implementation = selectImplementation(features)
		initializeDispatch()
		return nil
	}
	if _, ok := dispatchTable[name]; !ok {
		return fmt.Errorf("simd: unknown implementation %q", name)
	}
	implementation = name
	initializeDispatch()
	return nil
}

// GetImplementation returns the active implementation name
func GetImplementation() string {
	return currentDispatch.Load().Name
}
