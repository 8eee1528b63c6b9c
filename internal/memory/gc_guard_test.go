package memory

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/23skdu/reduced/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeMemStats struct{ heapInuse uint64 }

func (f *fakeMemStats) ReadMemStats(m *runtime.MemStats) {
	m.HeapInuse = f.heapInuse
}

func TestGCGuard_EngageRelease(t *testing.T) {
	orig := debug.SetGCPercent(150)
	defer debug.SetGCPercent(orig)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	g := NewGCGuard(&logger)
	g.reader = &fakeMemStats{heapInuse: 4096}

	assert.False(t, g.Engaged())
	g.Engage()
	assert.True(t, g.Engaged())
	assert.Equal(t, -1.0, testutil.ToFloat64(metrics.GCPercent))
	assert.Equal(t, 4096.0, testutil.ToFloat64(metrics.GCHeapInuseBytes))

	// a second Engage must not record -1 as the value to restore
	g.Engage()

	g.Release()
	assert.False(t, g.Engaged())
	assert.Equal(t, 150.0, testutil.ToFloat64(metrics.GCPercent))
	assert.Equal(t, 150, debug.SetGCPercent(150))
	assert.Contains(t, buf.String(), "Garbage collector held off")
	assert.Contains(t, buf.String(), "Garbage collector restored")
}

func TestGCGuard_ReleaseWithoutEngage(t *testing.T) {
	orig := debug.SetGCPercent(120)
	defer debug.SetGCPercent(orig)

	g := NewGCGuard(nil)
	g.Release()
	assert.Equal(t, 120, debug.SetGCPercent(120))
}
