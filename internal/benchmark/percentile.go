// Package benchmark computes and serves peer cohort aggregates.
package benchmark

import (
	"math"
	"sort"

	"github.com/avencora/tenantpulse/internal/models"
)

// percentileValue returns the p-th percentile of sorted values using
// linear interpolation between closest ranks. An empty slice yields 0; a
// single element is every percentile of itself.
func percentileValue(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p / 100 * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// summarize computes the stored aggregate statistics over a cohort's
// values. The input is sorted in place.
func summarize(values []float64) (p25, median, p75, mean, min, max float64) {
	sort.Float64s(values)

	var sum float64
	for _, v := range values {
		sum += v
	}

	return percentileValue(values, 25),
		percentileValue(values, 50),
		percentileValue(values, 75),
		sum / float64(len(values)),
		values[0],
		values[len(values)-1]
}

// PercentilePosition estimates where a value sits within a stored
// aggregate, as a 0-100 percentile. Each quartile segment maps linearly
// onto its 25-point sub-range; a degenerate segment (equal endpoints)
// snaps to its lower bound.
func PercentilePosition(b *models.PeerBenchmark, value float64) int {
	if value <= b.Min {
		return 0
	}
	if value >= b.Max {
		return 100
	}

	segments := []struct {
		lo, hi float64
		base   float64
	}{
		{b.Min, b.P25, 0},
		{b.P25, b.Median, 25},
		{b.Median, b.P75, 50},
		{b.P75, b.Max, 75},
	}

	for _, seg := range segments {
		if value > seg.hi {
			continue
		}
		if seg.hi == seg.lo {
			return int(math.Round(seg.base))
		}
		frac := (value - seg.lo) / (seg.hi - seg.lo)
		return int(math.Round(seg.base + frac*25))
	}
	return 100
}
