package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/models"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	return tbl
}

// num formats a statistic, printing "-" for the undefined sentinel.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func rightAligned(from, to int) []table.ColumnConfig {
	var cfg []table.ColumnConfig
	for i := from; i <= to; i++ {
		cfg = append(cfg, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	return cfg
}

func renderSensors(w io.Writer, sensors []analysis.ResolvedSensor) {
	if len(sensors) == 0 {
		fmt.Fprintln(w, "(no known sensors)")
		return
	}
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Sensor", "Column", "Index", "Unit"})
	for _, s := range sensors {
		tbl.AppendRow(table.Row{s.Name, s.Column, s.Index, s.Unit})
	}
	tbl.Render()
}

func renderSummaries(w io.Writer, summaries []analysis.SensorSummary) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Sensor", "Column", "Count", "Min", "Max", "Mean", "Median", "Std"})
	for _, s := range summaries {
		st := s.Stats
		tbl.AppendRow(table.Row{s.Sensor.Name, s.Sensor.Column, st.Count,
			num(st.Min), num(st.Max), num(st.Mean), num(st.Median), num(st.Std)})
	}
	tbl.SetColumnConfigs(rightAligned(3, 8))
	tbl.Render()
}

func renderCorrelation(w io.Writer, m *analysis.CorrelationMatrix) {
	if len(m.Sensors) == 0 {
		fmt.Fprintln(w, "(no known sensors)")
		return
	}
	tbl := newTable(w)
	header := table.Row{""}
	for _, s := range m.Sensors {
		header = append(header, s)
	}
	tbl.AppendHeader(header)
	for i, s := range m.Sensors {
		row := table.Row{s}
		for _, v := range m.Values[i] {
			row = append(row, num(v))
		}
		tbl.AppendRow(row)
	}
	tbl.SetColumnConfigs(rightAligned(2, len(m.Sensors)+1))
	tbl.Render()
}

func renderBoxplots(w io.Writer, resp models.BoxplotResponse) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Sensor", "Count", "Min", "Q1", "Median", "Q3", "Max", "Fences", "Outliers"})
	for _, name := range resp.Sensors {
		b := resp.Stats[name]
		tbl.AppendRow(table.Row{name, b.Count, num(b.Min), num(b.Q1), num(b.Median), num(b.Q3), num(b.Max),
			num(b.LowerFence) + " .. " + num(b.UpperFence), len(b.Outliers)})
	}
	tbl.SetColumnConfigs(rightAligned(2, 9))
	tbl.Render()
}

func renderDistribution(w io.Writer, column string, fit analysis.GaussianFit) {
	fmt.Fprintf(w, "%s: n=%d mean=%s std=%s", column, fit.Count, num(fit.Mean), num(fit.Std))
	if fit.Degenerate {
		fmt.Fprint(w, " (degenerate)")
	}
	fmt.Fprintln(w)
	if len(fit.Bins) == 0 {
		return
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"From", "To", "Count"})
	for _, b := range fit.Bins {
		tbl.AppendRow(table.Row{num(b.Lo), num(b.Hi), b.Count})
	}
	tbl.SetColumnConfigs(rightAligned(1, 3))
	tbl.Render()
}

func renderGroups(w io.Writer, resp models.GroupsResponse) {
	var sensors []string
	if len(resp.Groups) > 0 {
		for name := range resp.Groups[0].Stats {
			sensors = append(sensors, name)
		}
		sort.Strings(sensors)
	}

	tbl := newTable(w)
	header := table.Row{strings.Join(resp.Keys, " | "), "Rows"}
	for _, s := range sensors {
		header = append(header, s+" mean")
	}
	tbl.AppendHeader(header)
	for _, g := range resp.Groups {
		row := table.Row{strings.Join(g.Values, " | "), g.Size}
		for _, s := range sensors {
			row = append(row, num(g.Stats[s].Mean))
		}
		tbl.AppendRow(row)
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d groups", len(resp.Groups))})
	tbl.Render()
}

func renderColumns(w io.Writer, profiles []analysis.ColumnProfile) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Column", "Sensor", "Kind", "Numeric", "Missing", "Distinct"})
	for _, p := range profiles {
		tbl.AppendRow(table.Row{p.Column, p.Sensor, p.Kind, p.NumericCount, p.MissingCount, p.DistinctCount})
	}
	tbl.SetColumnConfigs(rightAligned(4, 6))
	tbl.Render()
}
