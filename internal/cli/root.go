package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/framesource/internal/config"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// app carries state resolved once per invocation and shared by subcommands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	closeLog func() error
	runID    ulid.ULID
}

// NewRootCmd creates the root Cobra command for the framesource CLI.
// It loads configuration, wires up logging and registers the size, split and
// read subcommands.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for
// testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	return newRootCmd(ver, lookupEnv, newApp())
}

func newApp() *app {
	return &app{
		cfg:      config.New(),
		logger:   zerolog.Nop(),
		closeLog: func() error { return nil },
	}
}

func newRootCmd(ver string, lookupEnv func(string) (string, bool), a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "framesource",
		Short:         "Split and read tabular datasets as parallel bundles",
		Long:          "framesource: split an in-memory dataset into claimable row ranges and read them in parallel",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, lookupEnv)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.closeLog()
		},
	}

	cmd.PersistentFlags().String("config", "", "path to config file (default $FRAMESOURCE_HOME/config.yaml)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.AddCommand(newSizeCmd(a), newSplitCmd(a), newReadCmd(a))

	// Post-run hooks are skipped when RunE fails, so failures close the log here.
	for _, sub := range cmd.Commands() {
		run := sub.RunE
		sub.RunE = func(c *cobra.Command, args []string) error {
			if err := run(c, args); err != nil {
				return errors.Join(err, a.closeLog())
			}
			return nil
		}
	}

	return cmd
}

// setup resolves configuration in order: defaults, config file, environment,
// then command-line flags.
func (a *app) setup(cmd *cobra.Command, lookupEnv func(string) (string, bool)) error {
	path, _ := cmd.Flags().GetString("config")
	optional := path == ""
	if optional {
		if p, ok := lookupEnv(config.EnvHome); ok && p != "" {
			path = filepath.Join(p, "config.yaml")
		} else if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}

	cfg, err := config.Load(path, optional)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(lookupEnv)

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = config.FormatConsole
	}

	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	return a.setupLogging(cmd)
}

const rootCmdExample = `  # Count the rows of a dataset
  framesource size --file data.csv

  # Show the bundles a dataset splits into
  framesource split --file data.csv --bundle-size 3

  # Use the max-based split (one bundle)
  framesource split --file data.csv --bundle-size 3 --legacy-split

  # Read every bundle with 8 workers and export the read counter
  framesource read --file data.yaml --parallelism 8 --metrics-file rows.prom`
