package profiler

import "time"

// ProfilerBuilderOption configures a Profiler at construction.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often stats are logged.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}
