package main

import (
	"fmt"
	"math"
	"time"
)

type latencyHistogram struct {
	bounds []time.Duration
	counts []uint64
	total  uint64
}

func newLatencyHistogram() latencyHistogram {
	bounds := []time.Duration{
		1 * time.Microsecond,
		2 * time.Microsecond,
		5 * time.Microsecond,
		10 * time.Microsecond,
		50 * time.Microsecond,
		100 * time.Microsecond,
		500 * time.Microsecond,
		1 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		1 * time.Second,
	}
	return latencyHistogram{
		bounds: bounds,
		counts: make([]uint64, len(bounds)+1),
	}
}

func (h *latencyHistogram) Observe(d time.Duration) {
	h.total++
	for i := range h.bounds {
		if d <= h.bounds[i] {
			h.counts[i]++
			return
		}
	}
	h.counts[len(h.counts)-1]++
}

func (h *latencyHistogram) Merge(other latencyHistogram) {
	h.total += other.total
	for i := range h.counts {
		h.counts[i] += other.counts[i]
	}
}

// percentile returns the upper bound of the bucket holding the p-th
// percentile.
func (h latencyHistogram) percentile(p float64) time.Duration {
	if h.total == 0 {
		return 0
	}
	target := max(uint64(math.Ceil((p/100.0)*float64(h.total))), 1)
	var seen uint64
	for i, c := range h.counts {
		seen += c
		if seen >= target && i < len(h.bounds) {
			return h.bounds[i]
		}
	}
	return h.bounds[len(h.bounds)-1]
}

type runResult struct {
	records   int64
	errors    int64
	bytes     int64
	opsPerSec float64
	mbPerSec  float64
	avgMicros float64
	hist      latencyHistogram
	message   string
}

func finalizeResult(records, errors, bytes int64, wallElapsed, threadElapsed time.Duration, hist latencyHistogram) runResult {
	sec := wallElapsed.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	return runResult{
		records:   records,
		errors:    errors,
		bytes:     bytes,
		opsPerSec: float64(records) / sec,
		mbPerSec:  (float64(bytes) / (1024 * 1024)) / sec,
		avgMicros: float64(threadElapsed.Microseconds()) / float64(max(records, 1)),
		hist:      hist,
	}
}

func formatDurationMicros(d time.Duration) string {
	return fmt.Sprintf("%.1f", float64(d.Microseconds()))
}
