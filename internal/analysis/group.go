package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

// GroupKey identifies a combination of categorical values. Each value is
// written as "<byte length>:<value>", so no value content can make two
// different combinations encode the same key.
type GroupKey string

// NewGroupKey encodes values in order.
func NewGroupKey(values ...string) GroupKey {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return GroupKey(b.String())
}

// Parts decodes the key back into its values.
func (k GroupKey) Parts() []string {
	s := string(k)
	var parts []string
	for s != "" {
		colon := strings.IndexByte(s, ':')
		if colon < 0 {
			break
		}
		n, err := strconv.Atoi(s[:colon])
		if err != nil || colon+1+n > len(s) {
			break
		}
		parts = append(parts, s[colon+1:colon+1+n])
		s = s[colon+1+n:]
	}
	return parts
}

// Group is the set of rows sharing one key, with per-sensor statistics.
type Group struct {
	Key    GroupKey               `json:"-"`
	Values []string               `json:"values"`
	Rows   []state.Row            `json:"-"`
	Stats  map[string]StatSummary `json:"stats"`
}

// Size returns the number of rows in the group.
func (g *Group) Size() int { return len(g.Rows) }

// Label joins the key values for display.
func (g *Group) Label(sep string) string { return strings.Join(g.Values, sep) }

// Grouping is the result of one GroupBy pass. Keys lists the groups in the
// order their first row appeared.
type Grouping struct {
	Columns []string
	Keys    []GroupKey
	Groups  map[GroupKey]*Group
}

// Ordered returns the groups in Keys order.
func (g *Grouping) Ordered() []*Group {
	out := make([]*Group, len(g.Keys))
	for i, k := range g.Keys {
		out[i] = g.Groups[k]
	}
	return out
}

// GroupBy partitions the dataset by the raw values of keyColumns. Every row
// lands in exactly one group; an empty cell is a valid key value. Statistics
// are computed per group for each of sensors.
func GroupBy(ds *state.Dataset, keyColumns []string, sensors []ResolvedSensor) (*Grouping, error) {
	idx := make([]int, len(keyColumns))
	cols := make([]string, len(keyColumns))
	for i, name := range keyColumns {
		idx[i] = ResolveColumn(name, ds.Header)
		if idx[i] == NotFound {
			return nil, fmt.Errorf("%w: key column %q in %s", ErrNotFound, name, ds.Name)
		}
		cols[i] = ds.Header[idx[i]]
	}

	grouping := &Grouping{Columns: cols, Groups: make(map[GroupKey]*Group)}
	values := make([]string, len(idx))
	for _, row := range ds.Rows {
		for i, c := range idx {
			values[i] = row.At(c)
		}
		key := NewGroupKey(values...)

		g, ok := grouping.Groups[key]
		if !ok {
			g = &Group{Key: key, Values: append([]string(nil), values...)}
			grouping.Groups[key] = g
			grouping.Keys = append(grouping.Keys, key)
		}
		g.Rows = append(g.Rows, row)
	}

	for _, g := range grouping.Groups {
		g.Stats = make(map[string]StatSummary, len(sensors))
		for _, s := range sensors {
			g.Stats[s.Name] = ComputeStats(Series(g.Rows, s.Index))
		}
	}
	return grouping, nil
}

// NestedGroup is one outer group and the grouping of its rows by the inner
// key columns.
type NestedGroup struct {
	Outer *Group
	Inner *Grouping
}

// GroupNested runs GroupBy on outer, then GroupBy on inner within each outer
// group, e.g. heater profile first and phase second.
func GroupNested(ds *state.Dataset, outer, inner []string, sensors []ResolvedSensor) ([]NestedGroup, error) {
	top, err := GroupBy(ds, outer, sensors)
	if err != nil {
		return nil, err
	}

	out := make([]NestedGroup, 0, len(top.Keys))
	for _, g := range top.Ordered() {
		sub, err := GroupBy(ds.Subset(g.Rows), inner, sensors)
		if err != nil {
			return nil, err
		}
		out = append(out, NestedGroup{Outer: g, Inner: sub})
	}
	return out, nil
}
