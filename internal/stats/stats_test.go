package stats

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMeanEmpty(t *testing.T) {
	if m := Mean(nil); m != 0 {
		t.Errorf("Mean(nil) = %v, want 0", m)
	}
}

func TestMean(t *testing.T) {
	samples := []float64{1, 2, 3, 4}
	if m := Mean(samples); !approxEqual(m, 2.5) {
		t.Errorf("Mean = %v, want 2.5", m)
	}
}

func TestMedianInterpolation(t *testing.T) {
	// even count: median interpolates between the two middle ranks
	samples := []float64{1, 2, 3, 4}
	if m := Median(samples); !approxEqual(m, 2.5) {
		t.Errorf("Median = %v, want 2.5", m)
	}

	// odd count: median lands exactly on the middle rank
	samples = []float64{1, 2, 3}
	if m := Median(samples); !approxEqual(m, 2) {
		t.Errorf("Median = %v, want 2", m)
	}
}

func TestPercentileEmpty(t *testing.T) {
	if p := Percentile(nil, 95); p != 0 {
		t.Errorf("Percentile(nil, 95) = %v, want 0", p)
	}
}

func TestPercentileSingleSample(t *testing.T) {
	if p := Percentile([]float64{7}, 99); p != 7 {
		t.Errorf("Percentile = %v, want 7", p)
	}
}

func TestPercentileMonotone(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i + 1)
	}

	p50 := Percentile(samples, 50)
	p95 := Percentile(samples, 95)
	p99 := Percentile(samples, 99)

	if !(p50 < p95 && p95 < p99) {
		t.Errorf("expected p50 < p95 < p99, got %v %v %v", p50, p95, p99)
	}
	if p99 > 100 {
		t.Errorf("p99 = %v exceeds max sample 100", p99)
	}
}

func TestComputeEmptySample(t *testing.T) {
	l := Compute(nil)
	if l.Mean != 0 || l.Median != 0 || l.Percentile95 != 0 || l.Percentile99 != 0 {
		t.Errorf("expected all-zero Latency for empty sample, got %+v", l)
	}
}

func TestComputeUnsortedInputUnmodified(t *testing.T) {
	samples := []float64{5, 1, 3}
	_ = Compute(samples)

	if samples[0] != 5 || samples[1] != 1 || samples[2] != 3 {
		t.Errorf("Compute must not mutate its input, got %v", samples)
	}
}
