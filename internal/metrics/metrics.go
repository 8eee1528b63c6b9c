package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// KernelOperationsTotal counts kernel lifecycle operations (setup, run, teardown)
	KernelOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reduced_kernel_operations_total",
			Help: "Total number of kernel lifecycle operations",
		},
		[]string{"kernel", "op", "status"},
	)

	// KernelDurationSeconds measures the latency of kernel operations
	KernelDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reduced_kernel_duration_seconds",
			Help:    "Duration of kernel lifecycle operations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12), // 100us to ~420s
		},
		[]string{"kernel", "op"},
	)

	// KernelBytesStreamedTotal tracks bytes read by reduction passes
	KernelBytesStreamedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reduced_kernel_bytes_streamed_total",
			Help: "Total bytes streamed from memory by kernel runs",
		},
		[]string{"kernel"},
	)

	// KernelResidentBytes reports the bytes currently held by kernel data arrays
	KernelResidentBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reduced_kernel_resident_bytes",
			Help: "Bytes currently held by kernel data arrays",
		},
		[]string{"kernel"},
	)

	// VerificationFailuresTotal counts run results outside the accepted tolerance
	VerificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reduced_verification_failures_total",
			Help: "Total number of kernel results that failed verification",
		},
		[]string{"kernel"},
	)

	// ReductionWorkers records the number of workers used by the last reduction
	ReductionWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reduced_reduction_workers",
			Help: "Number of workers used by the most recent parallel reduction",
		},
	)

	// SimdDispatchCount - SIMD implementation selections
	SimdDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reduced_simd_dispatch_count_total",
			Help: "Count of SIMD dispatch selections by implementation",
		},
		[]string{"impl"},
	)

	// AllocatorBytesAllocatedTotal counts bytes handed out by tracking allocators
	AllocatorBytesAllocatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reduced_allocator_bytes_allocated_total",
			Help: "Total bytes allocated through tracking allocators",
		},
	)

	// AllocatorBytesFreedTotal counts bytes returned to tracking allocators
	AllocatorBytesFreedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reduced_allocator_bytes_freed_total",
			Help: "Total bytes freed through tracking allocators",
		},
	)

	// AllocatorAllocationsActive is the number of live allocations
	AllocatorAllocationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reduced_allocator_allocations_active",
			Help: "Number of live allocations held by tracking allocators",
		},
	)

	// AllocatorRejectionsTotal counts allocations refused by the memory limit
	AllocatorRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reduced_allocator_rejections_total",
			Help: "Total allocations rejected because they exceed the memory limit",
		},
	)

	// LogEntriesTotal counts log entries by level
	LogEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reduced_log_entries_total",
			Help: "Total number of log entries by level",
		},
		[]string{"level"},
	)

	// LogErrorsTotal counts error-level log entries specifically
	LogErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reduced_log_errors_total",
			Help: "Total number of error log entries",
		},
	)

	// GCPercent mirrors the GOGC setting while the benchmark holds the collector
	GCPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reduced_gc_percent",
			Help: "Current GOGC percentage, -1 while the collector is held off",
		},
	)

	// GCHeapInuseBytes is the heap in use when the collector was last held off
	GCHeapInuseBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reduced_gc_heap_inuse_bytes",
			Help: "Heap bytes in use after the collection that precedes timed runs",
		},
	)
)
