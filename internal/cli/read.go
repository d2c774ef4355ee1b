package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/framesource/internal/engine/runner"
	"github.com/rshade/framesource/internal/metrics"
	"github.com/rshade/framesource/internal/rows"
	"github.com/rshade/framesource/internal/source"
)

func newReadCmd(a *app) *cobra.Command {
	var (
		flags       sourceFlags
		bundleSize  int64
		parallelism int
		limit       int
		metricsFile string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read every bundle of a dataset in parallel",
		Long: `Read splits the dataset into bundles, reads each bundle through its own
range tracker and prints the rows in offset order. Every row read increments
the records_read counter, which can be exported as a Prometheus textfile.`,
		Example: `  # Read with 8 workers
  framesource read --file data.csv --parallelism 8

  # Print the first 10 rows as JSON and export the counter
  framesource read --file data.jsonl --limit 10 --output json --metrics-file rows.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			registry := metrics.NewRegistry(a.cfg.Metrics.Namespace)
			counter, err := registry.Counter(source.RecordsReadCounter, "Total rows read from the source.")
			if err != nil {
				return err
			}

			frame, src, err := a.loadSource(&flags, source.WithCounter(counter))
			if err != nil {
				return err
			}

			size := a.cfg.Source.BundleSize
			if cmd.Flags().Changed("bundle-size") {
				size = bundleSize
			}
			workers := a.cfg.Runner.Parallelism
			if cmd.Flags().Changed("parallelism") {
				workers = parallelism
			}

			r, err := runner.New[rows.Record](
				runner.WithBundleSize(size),
				runner.WithParallelism(workers),
				runner.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}

			records, err := r.ReadAll(cmd.Context(), src)
			if err != nil {
				return err
			}

			if path := firstNonEmpty(metricsFile, a.cfg.Metrics.Textfile); path != "" {
				if err = registry.WriteTextfile(path); err != nil {
					return fmt.Errorf("writing metrics: %w", err)
				}
				a.logger.Info().Str("path", path).Msg("metrics written")
			}

			shown := records
			if limit > 0 && limit < len(shown) {
				shown = shown[:limit]
			}

			out := cmd.OutOrStdout()
			if output == outputJSON {
				return renderRowsJSON(out, shown)
			}
			if err = renderRowsTable(out, frame.Columns(), shown); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "\n%s rows read\n", formatCount(counter.Value()))
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.legacySplit, "legacy-split", false, "use the max-based split that yields one bundle")
	cmd.Flags().BoolVar(&flags.scanFromZero, "scan-from-zero", false, "offer offsets from 0 instead of the bundle start")
	cmd.Flags().Int64Var(&bundleSize, "bundle-size", 0, "desired rows per bundle (default from config)")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "bundles read concurrently (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many rows (0 prints all)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write the read counter to this Prometheus textfile")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")

	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
