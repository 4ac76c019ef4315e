package analysis

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// StatSummary describes one numeric series. When Count is 0 every float
// field is NaN: an empty column has no minimum, and 0 would read as a real
// sensor value.
type StatSummary struct {
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	Std    float64
	Count  int
}

// Defined reports whether the summary was computed from at least one value.
func (s StatSummary) Defined() bool { return s.Count > 0 }

// MarshalJSON renders undefined fields as null.
func (s StatSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
		Mean   *float64 `json:"mean"`
		Median *float64 `json:"median"`
		Std    *float64 `json:"std"`
		Count  int      `json:"count"`
	}{
		Min:    optional(s.Min),
		Max:    optional(s.Max),
		Mean:   optional(s.Mean),
		Median: optional(s.Median),
		Std:    optional(s.Std),
		Count:  s.Count,
	})
}

func emptySummary() StatSummary {
	nan := math.NaN()
	return StatSummary{Min: nan, Max: nan, Mean: nan, Median: nan, Std: nan}
}

// ComputeStats summarizes a series. NaN and infinite values are ignored.
// Std is the population standard deviation (divides by Count).
func ComputeStats(series []float64) StatSummary {
	vals := finite(series)
	if len(vals) == 0 {
		return emptySummary()
	}
	sort.Float64s(vals)

	lo, hi := vals[0], vals[len(vals)-1]
	mean, std := meanStdDev(vals, lo, hi, stat.PopMeanStdDev)
	if lo == hi {
		mean, std = lo, 0
	}

	return StatSummary{
		Min:    lo,
		Max:    hi,
		Mean:   clamp(mean, lo, hi),
		Median: median(vals),
		Std:    std,
		Count:  len(vals),
	}
}

// median expects a sorted, non-empty slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 0 {
		return sorted[n/2-1]/2 + sorted[n/2]/2
	}
	return sorted[n/2]
}

// meanStdDev applies f to vals, rescaling by the largest magnitude when the
// sums overflow. lo and hi are the extremes of vals.
func meanStdDev(vals []float64, lo, hi float64, f func(x, weights []float64) (mean, std float64)) (float64, float64) {
	mean, std := f(vals, nil)
	if isFinite(mean) && isFinite(std) {
		return mean, std
	}

	scale := math.Max(math.Abs(lo), math.Abs(hi))
	scaled := make([]float64, len(vals))
	for i, v := range vals {
		scaled[i] = v / scale
	}
	mean, std = f(scaled, nil)
	return mean * scale, std * scale
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
