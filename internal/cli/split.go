package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/rshade/framesource/internal/source"
)

func newSplitCmd(a *app) *cobra.Command {
	var (
		flags      sourceFlags
		bundleSize int64
		start      int64
		stop       int64
		output     string
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Show the bundles a dataset splits into",
		Example: `  # Bundles of at most 3 rows
  framesource split --file data.csv --bundle-size 3

  # Split only rows [10, 50) and print JSON
  framesource split --file data.csv --start 10 --stop 50 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			_, src, err := a.loadSource(&flags)
			if err != nil {
				return err
			}

			size := a.cfg.Source.BundleSize
			if cmd.Flags().Changed("bundle-size") {
				size = bundleSize
			}

			var ranges []source.RangeOption
			if cmd.Flags().Changed("start") {
				ranges = append(ranges, source.From(start))
			}
			if cmd.Flags().Changed("stop") {
				ranges = append(ranges, source.To(stop))
			}

			bundles := slices.Collect(src.Split(size, ranges...))
			a.logger.Info().
				Int64("bundle_size", size).
				Int("bundles", len(bundles)).
				Msg("split complete")

			if output == outputJSON {
				if bundles == nil {
					bundles = []source.Bundle{}
				}
				return renderJSON(cmd.OutOrStdout(), bundles)
			}
			return renderBundlesTable(cmd.OutOrStdout(), bundles)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.legacySplit, "legacy-split", false, "use the max-based split that yields one bundle")
	cmd.Flags().Int64Var(&bundleSize, "bundle-size", 0, "desired rows per bundle (default from config)")
	cmd.Flags().Int64Var(&start, "start", 0, "first offset to split")
	cmd.Flags().Int64Var(&stop, "stop", 0, "exclusive end offset (default row count)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")

	return cmd
}
