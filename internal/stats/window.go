// Package stats keeps rolling latency figures for spline imports.
package stats

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at      time.Time
	elapsed time.Duration
	outcome string
}

// Snapshot is a point-in-time aggregate over the samples in the window.
type Snapshot struct {
	Count    int            `json:"count"`
	MinMs    int64          `json:"min_ms"`
	MaxMs    int64          `json:"max_ms"`
	AvgMs    float64        `json:"avg_ms"`
	P50Ms    float64        `json:"p50_ms"`
	P95Ms    float64        `json:"p95_ms"`
	P99Ms    float64        `json:"p99_ms"`
	Outcomes map[string]int `json:"outcomes"`
}

// Window tracks import durations over a rolling time window.
type Window struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewWindow(maxAge time.Duration) *Window {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one import that took elapsed and ended with outcome
// (for example "completed" or "failed").
func (w *Window) Record(elapsed time.Duration, outcome string) {
	if elapsed < 0 {
		elapsed = 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.pruneLocked(now)
	w.samples = append(w.samples, sample{at: now, elapsed: elapsed, outcome: outcome})
}

func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())

	snap := Snapshot{Outcomes: map[string]int{}}
	if len(w.samples) == 0 {
		return snap
	}

	ms := make([]int64, 0, len(w.samples))
	var sum int64
	for _, s := range w.samples {
		v := s.elapsed.Milliseconds()
		ms = append(ms, v)
		sum += v
		snap.Outcomes[s.outcome]++
	}
	slices.Sort(ms)

	snap.Count = len(ms)
	snap.MinMs = ms[0]
	snap.MaxMs = ms[len(ms)-1]
	snap.AvgMs = float64(sum) / float64(len(ms))
	snap.P50Ms = percentile(ms, 50)
	snap.P95Ms = percentile(ms, 95)
	snap.P99Ms = percentile(ms, 99)
	return snap
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	kept := w.samples[:0]
	for _, s := range w.samples {
		if !s.at.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	w.samples = kept
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
