package cli

import (
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/rshade/framesource/internal/config"
)

// setupLogging builds the logger from the resolved config and tags every
// event with a fresh run ID.
func (a *app) setupLogging(cmd *cobra.Command) error {
	logger, closeFn, err := config.NewLogger(a.cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.runID = ulid.Make()
	a.logger = logger.With().
		Str("component", "cli").
		Str("run_id", a.runID.String()).
		Logger()
	a.closeLog = closeFn

	a.logger.Debug().Str("command", cmd.Name()).Msg("command started")
	return nil
}
