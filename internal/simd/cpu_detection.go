package simd

import (
	"github.com/klauspost/cpuid/v2"
)

// CPUFeatures contains detected CPU SIMD capabilities
type CPUFeatures struct {
	Vendor    string
	HasSSE2   bool
	HasAVX2   bool
	HasAVX512 bool
	HasNEON   bool
	// CacheLine is the L1 data cache line size in bytes, 0 if unknown
	CacheLine int
}

// Global CPU detection state
var (
	features       CPUFeatures
	implementation string
)

// detectCPU detects CPU capabilities and selects the best summation kernel
func detectCPU() {
	features = CPUFeatures{
		Vendor:    cpuid.CPU.VendorString,
		HasSSE2:   cpuid.CPU.Supports(cpuid.SSE2),
		HasAVX2:   cpuid.CPU.Supports(cpuid.AVX2),
		HasAVX512: cpuid.CPU.Supports(cpuid.AVX512F) && cpuid.CPU.Supports(cpuid.AVX512DQ),
		HasNEON:   cpuid.CPU.Supports(cpuid.ASIMD),
		CacheLine: cpuid.CPU.CacheLine,
	}
	implementation = selectImplementation(features)
}

// selectImplementation picks the dispatch entry for a feature set
func selectImplementation(f CPUFeatures) string {
	switch {
	case f.HasAVX512:
		return "avx512"
	case f.HasAVX2:
		return "avx2"
	case f.HasSSE2:
		return "sse2"
	case f.HasNEON:
		return "neon"
	default:
		return "generic"
	}
}

// GetCPUFeatures returns the detected CPU capabilities
func GetCPUFeatures() CPUFeatures {
	return features
}
