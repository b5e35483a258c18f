// Package stats computes the summary statistics chunli attaches to a
// latency sample: mean, median, and the 95th/99th percentiles.
package stats

import (
	"sort"

	"github.com/dutradda/chunli/internal/chunli"
)

// Mean returns the arithmetic mean of samples, or 0 for an empty sample.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// Percentile returns the p-th percentile (0-100) of samples using linear
// interpolation between adjacent ranks. Returns 0 for an empty sample.
func Percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Median is the 50th percentile with linear interpolation.
func Median(samples []float64) float64 {
	return Percentile(samples, 50)
}

// Compute builds a chunli.Latency summary over a latency sample.
func Compute(samples []float64) chunli.Latency {
	return chunli.Latency{
		Mean:         Mean(samples),
		Median:       Median(samples),
		Percentile95: Percentile(samples, 95),
		Percentile99: Percentile(samples, 99),
	}
}
