package memory

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/23skdu/reduced/internal/metrics"
	"github.com/rs/zerolog"
)

// MemStatsReader interfaces runtime.ReadMemStats for testing
type MemStatsReader interface {
	ReadMemStats(m *runtime.MemStats)
}

type defaultMemStatsReader struct{}

func (d *defaultMemStatsReader) ReadMemStats(m *runtime.MemStats) {
	runtime.ReadMemStats(m)
}

// GCGuard keeps the garbage collector out of timed regions. Engage runs a
// full collection and then turns proportional collection off; Release puts
// the previous GOGC back.
type GCGuard struct {
	reader MemStatsReader
	logger *zerolog.Logger

	mu          sync.Mutex
	engaged     bool
	prevPercent int
}

// NewGCGuard creates a released guard. A nil logger discards output.
func NewGCGuard(logger *zerolog.Logger) *GCGuard {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &GCGuard{reader: &defaultMemStatsReader{}, logger: logger}
}

// Engage collects, records the live heap and sets GOGC to off. Engaging an
// engaged guard is a no-op.
func (g *GCGuard) Engage() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engaged {
		return
	}

	runtime.GC()
	var m runtime.MemStats
	g.reader.ReadMemStats(&m)
	metrics.GCHeapInuseBytes.Set(float64(m.HeapInuse))

	g.prevPercent = debug.SetGCPercent(-1)
	g.engaged = true
	metrics.GCPercent.Set(-1)
	g.logger.Debug().
		Uint64("heap_inuse", m.HeapInuse).
		Int("prev_gogc", g.prevPercent).
		Msg("Garbage collector held off")
}

// Release restores the GOGC value seen by Engage. Releasing a released guard
// is a no-op.
func (g *GCGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.engaged {
		return
	}
	debug.SetGCPercent(g.prevPercent)
	g.engaged = false
	metrics.GCPercent.Set(float64(g.prevPercent))
	g.logger.Debug().Int("gogc", g.prevPercent).Msg("Garbage collector restored")
}

// Engaged reports whether the collector is currently held off.
func (g *GCGuard) Engaged() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engaged
}
