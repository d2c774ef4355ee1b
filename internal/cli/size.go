package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/framesource/internal/rows"
	"github.com/rshade/framesource/internal/source"
)

// errFileRequired is returned when --file is missing.
var errFileRequired = errors.New("--file is required")

// sourceFlags holds the flags shared by commands that build a source.
type sourceFlags struct {
	file         string
	legacySplit  bool
	scanFromZero bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "dataset to load (.csv, .yaml, .yml, .jsonl, .ndjson)")
}

// loadSource loads the dataset and wraps it in a source configured from the
// resolved config, with flags taking precedence.
func (a *app) loadSource(f *sourceFlags, extra ...source.Option) (*rows.Frame, *source.Source[rows.Record], error) {
	if f.file == "" {
		return nil, nil, errFileRequired
	}

	frame, err := rows.LoadFile(f.file)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", f.file, err)
	}

	opts := []source.Option{source.WithLogger(a.logger)}
	if f.legacySplit || a.cfg.Source.LegacySplit {
		opts = append(opts, source.WithLegacySplit())
	}
	if f.scanFromZero || a.cfg.Source.ScanFromZero {
		opts = append(opts, source.WithScanFromZero())
	}
	opts = append(opts, extra...)

	a.logger.Debug().
		Str("file", f.file).
		Int("rows", frame.Len()).
		Strs("columns", frame.Columns()).
		Msg("dataset loaded")

	return frame, source.New[rows.Record](frame, opts...), nil
}

func newSizeCmd(a *app) *cobra.Command {
	var flags sourceFlags

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Print the number of rows in a dataset",
		Example: `  # Row count of a CSV file
  framesource size --file data.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, src, err := a.loadSource(&flags)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), src.EstimateSize())
			return err
		},
	}
	flags.register(cmd)

	return cmd
}
