package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CorrelationMatrix is a symmetric Pearson matrix indexed by Sensors on both
// axes.
type CorrelationMatrix struct {
	Sensors []string    `json:"sensors"`
	Values  [][]float64 `json:"matrix"`
}

// At returns the coefficient for sensors a and b, and false if either is not
// part of the matrix.
func (m *CorrelationMatrix) At(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, s := range m.Sensors {
		if s == a {
			i = k
		}
		if s == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

// Pearson correlates x and y over the positions where both are finite.
// Fewer than two such pairs, or a constant side, yields 0 instead of NaN.
func Pearson(x, y []float64) float64 {
	n := min(len(x), len(y))
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if isFinite(x[i]) && isFinite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}

	if len(xs) < 2 || constant(xs) || constant(ys) {
		return 0
	}

	// The n-1 factors of the sample covariance and deviations cancel, so this
	// equals the population form cov/(σx·σy).
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	return clamp(r, -1, 1)
}

// Correlate builds the matrix for aligned columns: index k of every column
// must come from the same source row. Each pair excludes only the rows where
// one of its own two columns is not numeric.
func Correlate(names []string, columns [][]float64) (*CorrelationMatrix, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("%w: %d names for %d columns", ErrMisaligned, len(names), len(columns))
	}
	for i := 1; i < len(columns); i++ {
		if len(columns[i]) != len(columns[0]) {
			return nil, fmt.Errorf("%w: column %q has %d values, %q has %d",
				ErrMisaligned, names[i], len(columns[i]), names[0], len(columns[0]))
		}
	}

	n := len(columns)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		if hasVariance(columns[i]) {
			values[i][i] = 1
		}
		for j := i + 1; j < n; j++ {
			r := Pearson(columns[i], columns[j])
			values[i][j] = r
			values[j][i] = r
		}
	}

	sensors := make([]string, len(names))
	copy(sensors, names)
	return &CorrelationMatrix{Sensors: sensors, Values: values}, nil
}

func hasVariance(series []float64) bool {
	vals := finite(series)
	return len(vals) >= 2 && !constant(vals)
}

func constant(vals []float64) bool {
	return floats.Min(vals) == floats.Max(vals)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
