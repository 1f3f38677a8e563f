package profiler

import "time"

// ProfilerOption is a functional option used to configure a Profiler in NewProfiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often a Report is produced. Non-positive values keep the
// one second default.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.interval = d
		}
	}
}
