package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/metrics"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/models"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

const opDataset = "dataset"

// Options tunes an AnalyticsService.
type Options struct {
	// MaxConcurrent bounds computations running at once; 0 means 1.
	MaxConcurrent int
	// Timeout is how long a caller waits for a result. The computation is not
	// interrupted: it finishes in the background and fills the cache.
	// 0 disables the timeout.
	Timeout time.Duration
	// HistogramBins is used when a distribution request gives no bin count.
	HistogramBins int
	// Metrics is optional.
	Metrics *metrics.Collector
}

// AnalyticsService loads datasets from a DataSource and serves cached
// analytics results. Results are keyed by dataset name, operation and
// parameters, and tagged with the source version so a changed file is
// recomputed.
type AnalyticsService struct {
	source  DataSource
	engine  *analysis.CSVService
	cache   *state.Cache
	sem     *semaphore.Weighted
	timeout time.Duration
	bins    int
	metrics *metrics.Collector
}

// NewAnalyticsService wires a source, engine and cache together.
func NewAnalyticsService(source DataSource, engine *analysis.CSVService, cache *state.Cache, opts Options) *AnalyticsService {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = analysis.DefaultBins
	}
	return &AnalyticsService{
		source:  source,
		engine:  engine,
		cache:   cache,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		timeout: opts.Timeout,
		bins:    opts.HistogramBins,
		metrics: opts.Metrics,
	}
}

// Files lists the datasets the source offers.
func (s *AnalyticsService) Files(ctx context.Context) ([]models.FileInfo, error) {
	return s.source.List(ctx)
}

// Info returns the shape of a dataset and the rows dropped while parsing.
func (s *AnalyticsService) Info(ctx context.Context, name string) (models.DatasetInfo, error) {
	return compute(ctx, s, name, "info", "", func(ds *state.Dataset) (models.DatasetInfo, error) {
		skipped := ds.Skipped
		if skipped == nil {
			skipped = []state.MalformedRow{}
		}
		return models.DatasetInfo{Name: ds.Name, Rows: ds.Len(), Header: ds.Header, Skipped: skipped}, nil
	})
}

// Sensors lists the logical sensors present in a dataset.
func (s *AnalyticsService) Sensors(ctx context.Context, name string) ([]string, error) {
	return compute(ctx, s, name, "sensors", "", func(ds *state.Dataset) ([]string, error) {
		names := s.engine.SensorNames(ds)
		if names == nil {
			names = []string{}
		}
		return names, nil
	})
}

// Summary returns descriptive statistics for one sensor or column.
func (s *AnalyticsService) Summary(ctx context.Context, name, column string) (analysis.StatSummary, error) {
	return compute(ctx, s, name, "summary", analysis.Normalize(column), func(ds *state.Dataset) (analysis.StatSummary, error) {
		return s.engine.Summary(ds, column)
	})
}

// Summaries returns descriptive statistics for every sensor present.
func (s *AnalyticsService) Summaries(ctx context.Context, name string) ([]analysis.SensorSummary, error) {
	return compute(ctx, s, name, "summaries", "", func(ds *state.Dataset) ([]analysis.SensorSummary, error) {
		return s.engine.Summaries(ds), nil
	})
}

// Correlation returns the Pearson matrix across the dataset's sensors.
func (s *AnalyticsService) Correlation(ctx context.Context, name string) (*analysis.CorrelationMatrix, error) {
	return compute(ctx, s, name, "correlation", "", s.engine.Correlation)
}

// Boxplots returns quartiles, fences and outliers for every sensor.
func (s *AnalyticsService) Boxplots(ctx context.Context, name string) (models.BoxplotResponse, error) {
	return compute(ctx, s, name, "boxplot", "", func(ds *state.Dataset) (models.BoxplotResponse, error) {
		sensors, stats := s.engine.Boxplots(ds)
		if sensors == nil {
			sensors = []string{}
		}
		return models.BoxplotResponse{Sensors: sensors, Stats: stats}, nil
	})
}

// Distribution returns the Gaussian overlay for one sensor or column.
// bins <= 0 uses the configured default.
func (s *AnalyticsService) Distribution(ctx context.Context, name, column string, bins int) (analysis.GaussianFit, error) {
	if bins <= 0 {
		bins = s.bins
	}
	params := analysis.Normalize(column) + "/" + strconv.Itoa(bins)
	return compute(ctx, s, name, "distribution", params, func(ds *state.Dataset) (analysis.GaussianFit, error) {
		return s.engine.Distribution(ds, column, bins)
	})
}

// Groups partitions a dataset by keys and summarizes each group.
func (s *AnalyticsService) Groups(ctx context.Context, name string, keys []string) (*analysis.Grouping, error) {
	return compute(ctx, s, name, "groups", joinParams(keys), func(ds *state.Dataset) (*analysis.Grouping, error) {
		return s.engine.Groups(ds, keys)
	})
}

// NestedGroups groups by outer, then by inner inside each outer group.
func (s *AnalyticsService) NestedGroups(ctx context.Context, name string, outer, inner []string) ([]analysis.NestedGroup, error) {
	params := joinParams(outer) + "/" + joinParams(inner)
	return compute(ctx, s, name, "nested_groups", params, func(ds *state.Dataset) ([]analysis.NestedGroup, error) {
		return s.engine.NestedGroups(ds, outer, inner)
	})
}

// Columns profiles every column of a dataset.
func (s *AnalyticsService) Columns(ctx context.Context, name string) ([]analysis.ColumnProfile, error) {
	return compute(ctx, s, name, "columns", "", func(ds *state.Dataset) ([]analysis.ColumnProfile, error) {
		return s.engine.Columns(ds), nil
	})
}

type outcome[T any] struct {
	value T
	err   error
}

// compute runs fn against the named dataset through the cache. The caller
// stops waiting when ctx or the service timeout ends; the computation itself,
// including its wait for a semaphore slot, always runs to completion.
func compute[T any](ctx context.Context, s *AnalyticsService, name, op, params string, fn func(*state.Dataset) (T, error)) (T, error) {
	var zero T

	version, err := s.source.Version(ctx, name)
	if err != nil {
		return zero, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan outcome[T], 1)
	bg := context.WithoutCancel(ctx)
	go func() {
		key := state.Key{Name: name, Op: op, Params: params}
		v, err := state.Load(s.cache, key, version, func() (T, error) {
			ds, err := s.dataset(bg, name, version)
			if err != nil {
				return zero, err
			}

			if err := s.sem.Acquire(bg, 1); err != nil {
				return zero, err
			}
			defer s.sem.Release(1)

			start := time.Now()
			v, err := fn(ds)
			if s.metrics != nil {
				s.metrics.ObserveCompute(op, time.Since(start))
			}
			return v, err
		})
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		slog.Warn("analytics request abandoned", "name", name, "op", op, "err", ctx.Err())
		return zero, ctx.Err()
	case o := <-done:
		return o.value, o.err
	}
}

func (s *AnalyticsService) dataset(ctx context.Context, name, version string) (*state.Dataset, error) {
	key := state.Key{Name: name, Op: opDataset}
	return state.Load(s.cache, key, version, func() (*state.Dataset, error) {
		start := time.Now()
		ds, err := s.source.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.SkippedRows(len(ds.Skipped))
		}
		slog.Info("dataset loaded", "name", name, "rows", ds.Len(), "columns", len(ds.Header),
			"skipped", len(ds.Skipped), "duration", time.Since(start))
		return ds, nil
	})
}

func joinParams(values []string) string {
	norm := make([]string, len(values))
	for i, v := range values {
		norm[i] = analysis.Normalize(v)
	}
	return string(analysis.NewGroupKey(norm...))
}
