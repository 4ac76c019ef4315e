package analysis

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultBins is the histogram bin count used when none is given.
	DefaultBins = 20
	// CurvePoints is the number of samples in a fitted Gaussian curve.
	CurvePoints = 100

	fenceFactor = 1.5
	sigmaSpan   = 3.0
)

// BoxplotStats holds the quartiles and Tukey fences of a series.
// Q1 and Q3 use nearest-rank indexing into the sorted series.
type BoxplotStats struct {
	Min         float64
	Q1          float64
	Median      float64
	Q3          float64
	Max         float64
	LowerFence  float64
	UpperFence  float64
	WhiskerLow  float64
	WhiskerHigh float64
	Outliers    []float64
	Count       int
}

// IQR returns Q3 - Q1.
func (b BoxplotStats) IQR() float64 { return b.Q3 - b.Q1 }

// IsOutlier reports whether v lies strictly outside the fences.
func (b BoxplotStats) IsOutlier(v float64) bool {
	return v < b.LowerFence || v > b.UpperFence
}

func (b BoxplotStats) MarshalJSON() ([]byte, error) {
	outliers := b.Outliers
	if outliers == nil {
		outliers = []float64{}
	}
	return json.Marshal(struct {
		Min         *float64  `json:"min"`
		Q1          *float64  `json:"q1"`
		Median      *float64  `json:"median"`
		Q3          *float64  `json:"q3"`
		Max         *float64  `json:"max"`
		LowerFence  *float64  `json:"lower_fence"`
		UpperFence  *float64  `json:"upper_fence"`
		WhiskerLow  *float64  `json:"whisker_low"`
		WhiskerHigh *float64  `json:"whisker_high"`
		Outliers    []float64 `json:"outliers"`
		Count       int       `json:"count"`
	}{
		Min:         optional(b.Min),
		Q1:          optional(b.Q1),
		Median:      optional(b.Median),
		Q3:          optional(b.Q3),
		Max:         optional(b.Max),
		LowerFence:  optional(b.LowerFence),
		UpperFence:  optional(b.UpperFence),
		WhiskerLow:  optional(b.WhiskerLow),
		WhiskerHigh: optional(b.WhiskerHigh),
		Outliers:    outliers,
		Count:       b.Count,
	})
}

// Boxplot computes quartiles, fences and outliers. Outliers are returned in
// ascending order.
func Boxplot(series []float64) BoxplotStats {
	vals := finite(series)
	n := len(vals)
	if n == 0 {
		nan := math.NaN()
		return BoxplotStats{
			Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan,
			LowerFence: nan, UpperFence: nan, WhiskerLow: nan, WhiskerHigh: nan,
		}
	}
	sort.Float64s(vals)

	q1 := vals[int(math.Floor(float64(n)*0.25))]
	q3 := vals[int(math.Floor(float64(n)*0.75))]
	iqr := q3 - q1

	b := BoxplotStats{
		Min:         vals[0],
		Q1:          q1,
		Median:      median(vals),
		Q3:          q3,
		Max:         vals[n-1],
		LowerFence:  q1 - fenceFactor*iqr,
		UpperFence:  q3 + fenceFactor*iqr,
		WhiskerLow:  math.NaN(),
		WhiskerHigh: math.NaN(),
		Count:       n,
	}

	for _, v := range vals {
		if b.IsOutlier(v) {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		if math.IsNaN(b.WhiskerLow) {
			b.WhiskerLow = v
		}
		b.WhiskerHigh = v
	}
	return b
}

// HistogramBin counts the values in [Lo, Hi). The last bin of a histogram
// also includes its upper edge.
type HistogramBin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram partitions [lo, hi] into bins equal-width bins. Values outside
// the range are not counted.
func Histogram(series []float64, lo, hi float64, bins int) []HistogramBin {
	if bins <= 0 || !(hi > lo) {
		return nil
	}

	width := (hi - lo) / float64(bins)
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[bins-1].Hi = hi

	for _, v := range series {
		if !isFinite(v) || v < lo || v > hi {
			continue
		}
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

// GaussianFit is a normal curve fitted to a series and scaled so its peak
// matches the tallest bin of the series' histogram over the same range.
// Degenerate fits (fewer than two values, or no spread) carry a single spike
// at the mean whose height is the value count.
type GaussianFit struct {
	Mean       float64
	Std        float64
	X          []float64
	Y          []float64
	Bins       []HistogramBin
	Count      int
	Degenerate bool
}

func (g GaussianFit) MarshalJSON() ([]byte, error) {
	x, y, bins := g.X, g.Y, g.Bins
	if x == nil {
		x = []float64{}
	}
	if y == nil {
		y = []float64{}
	}
	if bins == nil {
		bins = []HistogramBin{}
	}
	return json.Marshal(struct {
		Mean       *float64       `json:"mean"`
		Std        *float64       `json:"std"`
		X          []float64      `json:"x"`
		Y          []float64      `json:"y"`
		Bins       []HistogramBin `json:"bins"`
		Count      int            `json:"count"`
		Degenerate bool           `json:"degenerate"`
	}{
		Mean:       optional(g.Mean),
		Std:        optional(g.Std),
		X:          x,
		Y:          y,
		Bins:       bins,
		Count:      g.Count,
		Degenerate: g.Degenerate,
	})
}

func spike(mean float64, n int) GaussianFit {
	return GaussianFit{
		Mean:       mean,
		Std:        0,
		X:          []float64{mean},
		Y:          []float64{float64(n)},
		Count:      n,
		Degenerate: true,
	}
}

// FitGaussian fits a normal curve using the sample mean and standard
// deviation and evaluates it at CurvePoints positions across mean ± 3σ.
func FitGaussian(series []float64, bins int) GaussianFit {
	if bins <= 0 {
		bins = DefaultBins
	}

	vals := finite(series)
	n := len(vals)
	if n == 0 {
		return GaussianFit{Mean: math.NaN(), Std: math.NaN(), Degenerate: true}
	}

	if n < 2 || constant(vals) {
		return spike(vals[0], n)
	}

	mean, std := meanStdDev(vals, floats.Min(vals), floats.Max(vals), stat.MeanStdDev)
	dist := distuv.Normal{Mu: mean, Sigma: std}
	peak := dist.Prob(mean)
	lo, hi := mean-sigmaSpan*std, mean+sigmaSpan*std
	if !(std > 0) || !isFinite(peak) || !isFinite(lo) || !isFinite(hi) {
		return spike(mean, n)
	}

	hist := Histogram(vals, lo, hi, bins)
	tallest := 0
	for _, b := range hist {
		tallest = max(tallest, b.Count)
	}

	scale := float64(tallest) / peak

	x := make([]float64, CurvePoints)
	y := make([]float64, CurvePoints)
	step := (hi - lo) / float64(CurvePoints-1)
	for i := range x {
		x[i] = lo + float64(i)*step
		y[i] = dist.Prob(x[i]) * scale
	}
	x[CurvePoints-1] = hi

	return GaussianFit{
		Mean:  mean,
		Std:   std,
		X:     x,
		Y:     y,
		Bins:  hist,
		Count: n,
	}
}
