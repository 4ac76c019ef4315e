package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/models"
)

func newSensorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sensors FILE",
		Short: "List the logical sensors found in the header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			sensors := a.engine.Sensors(ds)
			return a.emit(cmd.OutOrStdout(), sensors, func(w io.Writer) {
				renderSensors(w, sensors)
			})
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	var column string
	cmd := &cobra.Command{
		Use:   "summary FILE",
		Short: "Min, max, mean, median and std per sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}

			var summaries []analysis.SensorSummary
			if column != "" {
				rs, err := a.engine.Resolve(ds, column)
				if err != nil {
					return err
				}
				stats, err := a.engine.Summary(ds, column)
				if err != nil {
					return err
				}
				summaries = []analysis.SensorSummary{{Sensor: rs, Stats: stats}}
			} else {
				summaries = a.engine.Summaries(ds)
			}
			return a.emit(cmd.OutOrStdout(), summaries, func(w io.Writer) {
				renderSummaries(w, summaries)
			})
		},
	}
	cmd.Flags().StringVarP(&column, "column", "c", "", "sensor or column to summarize (default: all sensors)")
	return cmd
}

func newCorrelationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "correlation FILE",
		Short: "Pearson correlation matrix across sensors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			matrix, err := a.engine.Correlation(ds)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), matrix, func(w io.Writer) {
				renderCorrelation(w, matrix)
			})
		},
	}
}

func newBoxplotCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "boxplot FILE",
		Short: "Quartiles, Tukey fences and outliers per sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			sensors, stats := a.engine.Boxplots(ds)
			resp := models.BoxplotResponse{Sensors: sensors, Stats: stats}
			return a.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				renderBoxplots(w, resp)
			})
		},
	}
}

func newDistributionCmd(a *app) *cobra.Command {
	var (
		column string
		bins   int
	)
	cmd := &cobra.Command{
		Use:   "distribution FILE",
		Short: "Histogram and fitted normal curve for one sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if column == "" {
				return fmt.Errorf("--column is required")
			}
			if bins <= 0 {
				return fmt.Errorf("--bins must be positive")
			}
			ds, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			fit, err := a.engine.Distribution(ds, column, bins)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), fit, func(w io.Writer) {
				renderDistribution(w, column, fit)
			})
		},
	}
	cmd.Flags().StringVarP(&column, "column", "c", "", "sensor or column to fit")
	cmd.Flags().IntVar(&bins, "bins", analysis.DefaultBins, "histogram bin count")
	return cmd
}

func newGroupsCmd(a *app) *cobra.Command {
	var keys, inner []string
	cmd := &cobra.Command{
		Use:   "groups FILE",
		Short: "Per-group sensor statistics, e.g. by phase and heater profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}

			if len(inner) > 0 {
				if len(keys) == 0 {
					return fmt.Errorf("--keys is required with --inner")
				}
				nested, err := a.engine.NestedGroups(ds, keys, inner)
				if err != nil {
					return err
				}
				resp := models.NewNestedGroupsResponse(keys, inner, nested)
				return a.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
					for _, outer := range resp.Groups {
						fmt.Fprintf(w, "%s\n", strings.Join(outer.Values, " | "))
						renderGroups(w, models.GroupsResponse{Keys: inner, Groups: outer.Groups})
					}
				})
			}

			grouping, err := a.engine.Groups(ds, keys)
			if err != nil {
				return err
			}
			resp := models.NewGroupsResponse(grouping)
			return a.emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
				renderGroups(w, resp)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&keys, "keys", "k", nil, "key columns (default: Phase,Heater_Profile)")
	cmd.Flags().StringSliceVar(&inner, "inner", nil, "second-level key columns grouped within each --keys group")
	return cmd
}

func newColumnsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "columns FILE",
		Short: "Profile every column: kind, missing values, distinct values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			profiles := a.engine.Columns(ds)
			return a.emit(cmd.OutOrStdout(), profiles, func(w io.Writer) {
				renderColumns(w, profiles)
			})
		},
	}
}
