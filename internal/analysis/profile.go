package analysis

import (
	"strings"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

// Column kinds reported by ProfileColumn.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
	KindEmpty       = "empty"
)

var missingValues = map[string]bool{
	"":     true,
	"null": true,
	"none": true,
	"nan":  true,
	"na":   true,
	"n/a":  true,
}

// ColumnProfile summarizes the content of one column.
type ColumnProfile struct {
	Column        string `json:"column"`
	Sensor        string `json:"sensor,omitempty"`
	Kind          string `json:"kind"`
	TotalRows     int    `json:"total_rows"`
	NumericCount  int    `json:"numeric_count"`
	MissingCount  int    `json:"missing_count"`
	DistinctCount int    `json:"distinct_count"`
}

// ProfileColumn counts numeric, missing and distinct values of column idx.
func ProfileColumn(ds *state.Dataset, idx int) ColumnProfile {
	p := ColumnProfile{Column: ds.Header[idx], TotalRows: ds.Len()}

	distinct := make(map[string]struct{})
	for _, row := range ds.Rows {
		raw := strings.TrimSpace(row.At(idx))
		if missingValues[strings.ToLower(raw)] {
			p.MissingCount++
			continue
		}
		distinct[raw] = struct{}{}
		if _, ok := ParseNumeric(raw); ok {
			p.NumericCount++
		}
	}
	p.DistinctCount = len(distinct)

	present := p.TotalRows - p.MissingCount
	switch {
	case present == 0:
		p.Kind = KindEmpty
	case p.NumericCount == present:
		p.Kind = KindNumeric
	default:
		p.Kind = KindCategorical
	}
	return p
}

// ProfileColumns profiles every column and tags the ones claimed by a sensor.
func ProfileColumns(ds *state.Dataset, aliases *AliasTable) []ColumnProfile {
	sensorOf := make(map[int]string)
	for _, s := range aliases.ResolveAll(ds.Header) {
		sensorOf[s.Index] = s.Name
	}

	out := make([]ColumnProfile, len(ds.Header))
	for i := range ds.Header {
		out[i] = ProfileColumn(ds, i)
		out[i].Sensor = sensorOf[i]
	}
	return out
}
