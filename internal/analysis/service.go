package analysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

var (
	// ErrNotFound marks a file, column or sensor that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMisaligned is returned by Correlate for columns of unequal length.
	ErrMisaligned = errors.New("misaligned series")
)

// DefaultGroupKeys are the categorical columns experiments are split by.
var DefaultGroupKeys = []string{"Phase", "Heater_Profile"}

// CSVService runs the analytics over an already-parsed dataset. It holds no
// per-dataset state and is safe for concurrent use.
type CSVService struct {
	aliases *AliasTable
}

// NewCSVService creates a service using aliases, or DefaultAliases when nil.
func NewCSVService(aliases *AliasTable) *CSVService {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &CSVService{aliases: aliases}
}

// Aliases returns the alias table in use.
func (s *CSVService) Aliases() *AliasTable { return s.aliases }

// Sensors returns the logical sensors present in the dataset.
func (s *CSVService) Sensors(ds *state.Dataset) []ResolvedSensor {
	return s.aliases.ResolveAll(ds.Header)
}

// SensorNames returns the names of the sensors present in the dataset.
func (s *CSVService) SensorNames(ds *state.Dataset) []string {
	sensors := s.Sensors(ds)
	names := make([]string, len(sensors))
	for i, rs := range sensors {
		names[i] = rs.Name
	}
	return names
}

// Resolve finds a logical sensor or raw column in the dataset.
func (s *CSVService) Resolve(ds *state.Dataset, column string) (ResolvedSensor, error) {
	rs, ok := s.aliases.Find(column, ds.Header)
	if !ok {
		err := fmt.Errorf("%w: column %q in %s", ErrNotFound, column, ds.Name)
		if alt := Suggest(column, ds.Header); len(alt) > 0 {
			quoted := make([]string, len(alt))
			for i, a := range alt {
				quoted[i] = strconv.Quote(a)
			}
			err = fmt.Errorf("%w (did you mean %s?)", err, strings.Join(quoted, ", "))
		}
		return ResolvedSensor{}, err
	}
	return rs, nil
}

// Summary computes descriptive statistics for one sensor or column.
func (s *CSVService) Summary(ds *state.Dataset, column string) (StatSummary, error) {
	rs, err := s.Resolve(ds, column)
	if err != nil {
		return StatSummary{}, err
	}
	return ComputeStats(Series(ds.Rows, rs.Index)), nil
}

// SensorSummary pairs a sensor with its statistics.
type SensorSummary struct {
	Sensor ResolvedSensor `json:"sensor"`
	Stats  StatSummary    `json:"stats"`
}

// Summaries computes statistics for every sensor present.
func (s *CSVService) Summaries(ds *state.Dataset) []SensorSummary {
	sensors := s.Sensors(ds)
	out := make([]SensorSummary, len(sensors))
	for i, rs := range sensors {
		out[i] = SensorSummary{Sensor: rs, Stats: ComputeStats(Series(ds.Rows, rs.Index))}
	}
	return out
}

// Correlation computes the Pearson matrix across every sensor present.
func (s *CSVService) Correlation(ds *state.Dataset) (*CorrelationMatrix, error) {
	sensors := s.Sensors(ds)
	names := make([]string, len(sensors))
	columns := make([][]float64, len(sensors))
	for i, rs := range sensors {
		names[i] = rs.Name
		columns[i] = AlignedSeries(ds.Rows, rs.Index)
	}
	return Correlate(names, columns)
}

// Boxplots computes quartiles and outliers for every sensor present.
func (s *CSVService) Boxplots(ds *state.Dataset) ([]string, map[string]BoxplotStats) {
	sensors := s.Sensors(ds)
	names := make([]string, len(sensors))
	stats := make(map[string]BoxplotStats, len(sensors))
	for i, rs := range sensors {
		names[i] = rs.Name
		stats[rs.Name] = Boxplot(Series(ds.Rows, rs.Index))
	}
	return names, stats
}

// Distribution fits a Gaussian overlay for one sensor or column.
func (s *CSVService) Distribution(ds *state.Dataset, column string, bins int) (GaussianFit, error) {
	rs, err := s.Resolve(ds, column)
	if err != nil {
		return GaussianFit{}, err
	}
	return FitGaussian(Series(ds.Rows, rs.Index), bins), nil
}

// Groups partitions the dataset by keys (DefaultGroupKeys when empty) and
// summarizes every sensor per group.
func (s *CSVService) Groups(ds *state.Dataset, keys []string) (*Grouping, error) {
	if len(keys) == 0 {
		keys = DefaultGroupKeys
	}
	return GroupBy(ds, keys, s.Sensors(ds))
}

// NestedGroups groups by outer, then by inner within each outer group.
func (s *CSVService) NestedGroups(ds *state.Dataset, outer, inner []string) ([]NestedGroup, error) {
	return GroupNested(ds, outer, inner, s.Sensors(ds))
}

// Columns profiles every column of the dataset.
func (s *CSVService) Columns(ds *state.Dataset) []ColumnProfile {
	return ProfileColumns(ds, s.aliases)
}
