package analysis

import (
	"math"
	"strconv"
	"strings"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

// ParseNumeric parses one raw cell. Empty cells and NaN/Inf spellings are
// rejected.
func ParseNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// AlignedSeries returns one value per row of column col, with NaN where the
// cell is not numeric. Index k always comes from row k.
func AlignedSeries(rows []state.Row, col int) []float64 {
	out := make([]float64, len(rows))
	for k, row := range rows {
		if v, ok := ParseNumeric(row.At(col)); ok {
			out[k] = v
		} else {
			out[k] = math.NaN()
		}
	}
	return out
}

// Series returns the numeric values of column col in row order, skipping
// cells that do not parse.
func Series(rows []state.Row, col int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		if v, ok := ParseNumeric(row.At(col)); ok {
			out = append(out, v)
		}
	}
	return out
}

func finite(series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, v := range series {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// optional maps the NaN sentinel to a JSON null.
func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
