package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/23skdu/reduced/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// LimitError is the panic value raised by TrackingAllocator.Allocate when a
// request would push live bytes past the configured limit. Column constructors
// recover it and turn it into an allocation error.
type LimitError struct {
	Requested int64
	Live      int64
	Limit     int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded: requested %d bytes with %d live, limit %d", e.Requested, e.Live, e.Limit)
}

// TrackingAllocator wraps a base memory.Allocator, updates Prometheus metrics
// and enforces an optional limit on live bytes.
type TrackingAllocator struct {
	memory.Allocator
	limit int64

	// Exposed for tests; the main purpose is metrics
	BytesAllocated atomic.Int64
	BytesFreed     atomic.Int64
	live           atomic.Int64
	peak           atomic.Int64
}

// NewTrackingAllocator creates a new allocator that wraps the given base allocator.
// If base is nil, it uses memory.DefaultAllocator. A limit <= 0 disables the limit.
func NewTrackingAllocator(base memory.Allocator, limit int64) *TrackingAllocator {
	if base == nil {
		base = memory.DefaultAllocator
	}
	if limit < 0 {
		limit = 0
	}
	return &TrackingAllocator{Allocator: base, limit: limit}
}

// Limit returns the configured byte limit, 0 when unlimited.
func (a *TrackingAllocator) Limit() int64 {
	return a.limit
}

// Live returns the bytes currently allocated and not yet freed.
func (a *TrackingAllocator) Live() int64 {
	return a.live.Load()
}

// Peak returns the highest live byte count seen so far.
func (a *TrackingAllocator) Peak() int64 {
	return a.peak.Load()
}

func (a *TrackingAllocator) grow(delta int64) {
	cur := a.live.Add(delta)
	for {
		p := a.peak.Load()
		if cur <= p || a.peak.CompareAndSwap(p, cur) {
			return
		}
	}
}

// Fits reports whether size more bytes can be allocated under the limit.
func (a *TrackingAllocator) Fits(size int64) bool {
	if size < 0 {
		return false
	}
	if a.limit == 0 {
		return true
	}
	return size <= a.limit-a.live.Load()
}

func (a *TrackingAllocator) Allocate(size int) []byte {
	if !a.Fits(int64(size)) {
		metrics.AllocatorRejectionsTotal.Inc()
		panic(&LimitError{Requested: int64(size), Live: a.live.Load(), Limit: a.limit})
	}
	b := a.Allocator.Allocate(size)
	a.grow(int64(len(b)))
	a.BytesAllocated.Add(int64(len(b)))
	metrics.AllocatorBytesAllocatedTotal.Add(float64(len(b)))
	metrics.AllocatorAllocationsActive.Inc()
	return b
}

func (a *TrackingAllocator) Reallocate(size int, b []byte) []byte {
	grow := int64(size - len(b))
	if grow > 0 && !a.Fits(grow) {
		metrics.AllocatorRejectionsTotal.Inc()
		panic(&LimitError{Requested: grow, Live: a.live.Load(), Limit: a.limit})
	}
	nb := a.Allocator.Reallocate(size, b)
	delta := int64(len(nb) - len(b))
	a.grow(delta)
	if delta > 0 {
		a.BytesAllocated.Add(delta)
		metrics.AllocatorBytesAllocatedTotal.Add(float64(delta))
	} else if delta < 0 {
		a.BytesFreed.Add(-delta)
		metrics.AllocatorBytesFreedTotal.Add(float64(-delta))
	}
	return nb
}

func (a *TrackingAllocator) Free(b []byte) {
	a.live.Add(-int64(len(b)))
	a.BytesFreed.Add(int64(len(b)))
	metrics.AllocatorBytesFreedTotal.Add(float64(len(b)))
	metrics.AllocatorAllocationsActive.Dec()
	a.Allocator.Free(b)
}

// Ensure interface satisfaction
var _ memory.Allocator = (*TrackingAllocator)(nil)
