package models

import (
	"time"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FileInfo describes one dataset offered by the data source.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size,omitempty"`
	Modified time.Time `json:"modified,omitempty"`
}

// FilesResponse is returned by /api/files.
type FilesResponse struct {
	Files []FileInfo `json:"files"`
}

// DatasetInfo describes a loaded dataset.
type DatasetInfo struct {
	Name    string               `json:"name"`
	Rows    int                  `json:"rows"`
	Header  []string             `json:"header"`
	Skipped []state.MalformedRow `json:"skipped"`
}

// ColumnsResponse is returned by /api/columns.
type ColumnsResponse struct {
	Dataset DatasetInfo              `json:"dataset"`
	Columns []analysis.ColumnProfile `json:"columns"`
}

// BoxplotResponse is returned by /api/boxplot.
type BoxplotResponse struct {
	Sensors []string                         `json:"sensors"`
	Stats   map[string]analysis.BoxplotStats `json:"stats"`
}

// GroupItem is one group of a grouping.
type GroupItem struct {
	Values []string                        `json:"values"`
	Size   int                             `json:"size"`
	Rows   []int                           `json:"rows"`
	Stats  map[string]analysis.StatSummary `json:"stats"`
}

// GroupsResponse is returned by /api/groups.
type GroupsResponse struct {
	Keys   []string    `json:"keys"`
	Groups []GroupItem `json:"groups"`
}

// NestedGroupItem is one outer group with its inner groups.
type NestedGroupItem struct {
	GroupItem
	Groups []GroupItem `json:"groups"`
}

// NestedGroupsResponse is returned by /api/groups/nested.
type NestedGroupsResponse struct {
	Outer  []string          `json:"outer"`
	Inner  []string          `json:"inner"`
	Groups []NestedGroupItem `json:"groups"`
}

// NewGroupItem converts a group, listing the dataset positions of its rows.
func NewGroupItem(g *analysis.Group) GroupItem {
	rows := make([]int, len(g.Rows))
	for i, r := range g.Rows {
		rows[i] = r.Index()
	}
	return GroupItem{Values: g.Values, Size: g.Size(), Rows: rows, Stats: g.Stats}
}

// NewGroupsResponse converts a grouping in first-seen order.
func NewGroupsResponse(g *analysis.Grouping) GroupsResponse {
	resp := GroupsResponse{Keys: g.Columns, Groups: make([]GroupItem, 0, len(g.Keys))}
	for _, group := range g.Ordered() {
		resp.Groups = append(resp.Groups, NewGroupItem(group))
	}
	return resp
}

// NewNestedGroupsResponse converts the result of a two-level grouping.
func NewNestedGroupsResponse(outer, inner []string, nested []analysis.NestedGroup) NestedGroupsResponse {
	resp := NestedGroupsResponse{Outer: outer, Inner: inner, Groups: make([]NestedGroupItem, 0, len(nested))}
	for _, ng := range nested {
		item := NestedGroupItem{GroupItem: NewGroupItem(ng.Outer)}
		item.Groups = NewGroupsResponse(ng.Inner).Groups
		resp.Groups = append(resp.Groups, item)
	}
	return resp
}
