package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/logging"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

// app carries the global flags and what PersistentPreRunE builds from them.
type app struct {
	aliasFile string
	asJSON    bool
	logLevel  string

	engine *analysis.CSVService
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "vocstat",
		Short:         "Descriptive statistics for gas-sensor CSV recordings",
		Long:          `vocstat parses a sensor CSV file, resolves logical sensors through the alias table and prints summaries, correlations, boxplots, distributions and group statistics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging.Init("text", logging.ParseLevel(a.logLevel))

			aliases := analysis.DefaultAliases()
			if a.aliasFile != "" {
				var err error
				if aliases, err = analysis.LoadAliases(a.aliasFile); err != nil {
					return err
				}
			}
			a.engine = analysis.NewCSVService(aliases)
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.aliasFile, "aliases", "", "YAML alias table (default: built-in sensors)")
	f.BoolVar(&a.asJSON, "json", false, "print JSON instead of tables")
	f.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newSensorsCmd(a),
		newSummaryCmd(a),
		newCorrelationCmd(a),
		newBoxplotCmd(a),
		newDistributionCmd(a),
		newGroupsCmd(a),
		newColumnsCmd(a),
	)
	return root
}

// load parses path and prints a one-line description of the file to stderr
// unless JSON output was requested.
func (a *app) load(cmd *cobra.Command, path string) (*state.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := state.ParseReader(info.Name(), f)
	if err != nil {
		return nil, err
	}

	if !a.asJSON {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "%s: %s, %d rows, %d columns\n",
			ds.Name, humanize.Bytes(uint64(info.Size())), ds.Len(), len(ds.Header))
		if n := len(ds.Skipped); n > 0 {
			color.New(color.FgYellow).Fprintf(errOut, "warning: skipped %d malformed %s\n", n, plural(n, "row", "rows"))
		}
	}
	return ds, nil
}

// emit writes v as JSON, or calls render for the table form.
func (a *app) emit(w io.Writer, v any, render func(io.Writer)) error {
	if a.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render(w)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
