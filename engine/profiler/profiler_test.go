package profiler

import (
	"log"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestProfiler(t *testing.T, mem *runtime.MemStats) (*Profiler, *fakeClock) {
	t.Helper()
	common.SetLogger(nil)
	t.Cleanup(func() { common.SetLogger(log.Printf) })

	clock := &fakeClock{t: time.Unix(100, 0)}
	p := NewProfiler(WithInterval(time.Second))
	p.now = clock.now
	p.readMem = func(m *runtime.MemStats) { *m = *mem }
	p.start = clock.t
	return p, clock
}

func TestTickReportsOncePerInterval(t *testing.T) {
	mem := &runtime.MemStats{Alloc: 2 << 20, TotalAlloc: 4 << 20}
	p, clock := newTestProfiler(t, mem)

	for i, visible := range []int{10, 30, 20} {
		clock.t = clock.t.Add(250 * time.Millisecond)
		_, done := p.Tick(Sample{Visible: visible, Total: 50, Strategy: "gpu"})
		assert.False(t, done, "tick %d", i)
	}

	clock.t = clock.t.Add(250 * time.Millisecond)
	r, done := p.Tick(Sample{Visible: 40, Total: 50, Strategy: "gpu"})
	require.True(t, done)

	assert.Equal(t, 4, r.Frames)
	assert.InDelta(t, 4.0, r.FPS, 1e-9)
	assert.InDelta(t, 25.0, r.AvgVisible, 1e-9)
	assert.Equal(t, 40, r.MaxVisible)
	assert.Equal(t, 50, r.Total)
	assert.Equal(t, "gpu", r.Strategy)
	assert.InDelta(t, 2.0, r.HeapMB, 1e-9)
	assert.InDelta(t, 4.0, r.AllocRateMB, 1e-9)

	// The next interval starts empty.
	clock.t = clock.t.Add(500 * time.Millisecond)
	_, done = p.Tick(Sample{Visible: 1, Total: 50})
	assert.False(t, done)
	assert.Equal(t, 1, p.frames)
	assert.Equal(t, 1, p.maxVisible)
}

func TestTickScansOnlyNewGCPauses(t *testing.T) {
	mem := &runtime.MemStats{NumGC: 2}
	mem.PauseNs[0] = 9000
	mem.PauseNs[1] = 3000
	p, clock := newTestProfiler(t, mem)

	clock.t = clock.t.Add(time.Second)
	r, done := p.Tick(Sample{})
	require.True(t, done)
	assert.Equal(t, uint32(2), r.GCCount)
	assert.Equal(t, uint64(9), r.MaxPauseUs)

	mem.NumGC = 3
	mem.PauseNs[2] = 5000
	clock.t = clock.t.Add(time.Second)
	r, done = p.Tick(Sample{})
	require.True(t, done)
	assert.Equal(t, uint64(5), r.MaxPauseUs)
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	assert.Equal(t, time.Second, NewProfiler(WithInterval(0)).interval)
	assert.Equal(t, 5*time.Second, NewProfiler(WithInterval(5*time.Second)).interval)
}
