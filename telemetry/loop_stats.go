package telemetry

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// LoopStats keeps a sliding window of control loop tick durations.
type LoopStats struct {
	mu       sync.Mutex
	period   time.Duration
	window   []float64
	next     int
	full     bool
	ticks    int64
	overruns int64
}

// LoopSummary is a digest of the recent tick durations, in milliseconds.
type LoopSummary struct {
	Ticks    int64
	Overruns int64
	MeanMs   float64
	P95Ms    float64
	MaxMs    float64
}

// NewLoopStats tracks the last size ticks of a loop running at period.
func NewLoopStats(period time.Duration, size int) *LoopStats {
	if size <= 0 {
		size = 1
	}
	return &LoopStats{period: period, window: make([]float64, size)}
}

// Observe records how long one tick took.
func (ls *LoopStats) Observe(d time.Duration) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.ticks++
	if d > ls.period {
		ls.overruns++
	}
	ls.window[ls.next] = float64(d) / float64(time.Millisecond)
	ls.next = (ls.next + 1) % len(ls.window)
	if ls.next == 0 {
		ls.full = true
	}
}

// Summary computes statistics over the window.
func (ls *LoopStats) Summary() LoopSummary {
	ls.mu.Lock()
	data := ls.window[:ls.next]
	if ls.full {
		data = ls.window
	}
	data = append([]float64(nil), data...)
	out := LoopSummary{Ticks: ls.ticks, Overruns: ls.overruns}
	ls.mu.Unlock()

	if len(data) == 0 {
		return out
	}
	// errors only come back for empty input, handled above
	//nolint:errcheck
	out.MeanMs, _ = stats.Mean(data)
	//nolint:errcheck
	out.P95Ms, _ = stats.Percentile(data, 95)
	//nolint:errcheck
	out.MaxMs, _ = stats.Max(data)
	return out
}

// Publish records the summary under prefix.
func (ls *LoopStats) Publish(pub Publisher, prefix string) {
	s := ls.Summary()
	pub.RecordNumber(prefix+"/Ticks", float64(s.Ticks))
	pub.RecordNumber(prefix+"/Overruns", float64(s.Overruns))
	pub.RecordNumber(prefix+"/MeanMs", s.MeanMs)
	pub.RecordNumber(prefix+"/P95Ms", s.P95Ms)
	pub.RecordNumber(prefix+"/MaxMs", s.MaxMs)
}
