package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

// Sample is what the profiler records for one rendered frame.
type Sample struct {
	// Visible is the number of splats that survived culling.
	Visible int

	// Total is the scene's splat count.
	Total int

	// Strategy names the depth sorting strategy that ordered the frame.
	Strategy string
}

// Report aggregates the frames of one logging interval.
type Report struct {
	Frames int
	FPS    float64

	AvgVisible float64
	MaxVisible int
	Total      int
	Strategy   string

	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	MaxPauseUs  uint64
}

// Profiler tracks frame rate, splat visibility and memory statistics and logs a
// Report once per interval.
type Profiler struct {
	interval time.Duration
	now      func() time.Time
	readMem  func(*runtime.MemStats)

	start      time.Time
	frames     int
	visibleSum int
	maxVisible int
	last       Sample

	mem            runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a Profiler that reports once per second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		interval: time.Second,
		now:      time.Now,
		readMem:  runtime.ReadMemStats,
	}
	for _, opt := range options {
		opt(p)
	}
	p.start = p.now()
	return p
}

// Tick records one frame. When the interval has elapsed it logs and returns the
// interval's Report and starts a new interval.
//
// Parameters:
//   - s: the frame's sample
//
// Returns:
//   - Report: the finished interval, valid only when the bool is true
//   - bool: true if an interval finished on this tick
func (p *Profiler) Tick(s Sample) (Report, bool) {
	p.frames++
	p.visibleSum += s.Visible
	p.maxVisible = max(p.maxVisible, s.Visible)
	p.last = s

	now := p.now()
	elapsed := now.Sub(p.start)
	if elapsed < p.interval {
		return Report{}, false
	}

	r := Report{
		Frames:     p.frames,
		FPS:        float64(p.frames) / elapsed.Seconds(),
		AvgVisible: float64(p.visibleSum) / float64(p.frames),
		MaxVisible: p.maxVisible,
		Total:      s.Total,
		Strategy:   s.Strategy,
	}
	p.sampleMemory(&r, elapsed)

	common.Logf("[Profiler] FPS: %.2f | Splats: %.0f avg / %d max visible of %d (%s) | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (max pause %d µs)",
		r.FPS, r.AvgVisible, r.MaxVisible, r.Total, r.Strategy, r.HeapMB, r.AllocRateMB, r.GCCount, r.MaxPauseUs)

	p.start = now
	p.frames, p.visibleSum, p.maxVisible = 0, 0, 0
	return r, true
}

// sampleMemory fills the memory fields of r. PauseNs is a ring of the last 256
// pauses, so only pauses since the previous report are scanned.
func (p *Profiler) sampleMemory(r *Report, elapsed time.Duration) {
	p.readMem(&p.mem)

	r.HeapMB = float64(p.mem.Alloc) / 1024 / 1024
	r.AllocRateMB = float64(p.mem.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
	r.GCCount = p.mem.NumGC

	from := p.lastGCCount
	if p.mem.NumGC-from > 256 {
		from = p.mem.NumGC - 256
	}
	for i := from; i < p.mem.NumGC; i++ {
		r.MaxPauseUs = max(r.MaxPauseUs, p.mem.PauseNs[i%256]/1000)
	}

	p.lastGCCount = p.mem.NumGC
	p.lastTotalAlloc = p.mem.TotalAlloc
}
