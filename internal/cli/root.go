// Package cli wires the crateship command line: flag parsing, logger setup,
// collaborator construction, and the confirmation prompt. All release logic
// lives in internal/release; this package only assembles and invokes it.
package cli

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"crateship/internal/config"
	"crateship/internal/release"
)

// App holds the pieces shared by every subcommand.
type App struct {
	Logger *log.Logger
	Env    *config.Env
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
	})
	app := &App{Logger: logger, Env: config.LoadEnv()}

	var verbose, quiet int
	root := &cobra.Command{
		Use:           "crateship",
		Short:         "Release cargo workspace crates",
		Long:          "crateship automates releasing crates: version bump, dependent reconciliation, commit, publish, tag, dev bump, push.",
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case verbose > 0:
				logger.SetLevel(log.DebugLevel)
			case quiet >= 2:
				logger.SetLevel(log.ErrorLevel)
			case quiet == 1:
				logger.SetLevel(log.WarnLevel)
			default:
				logger.SetLevel(log.InfoLevel)
			}
		},
	}
	root.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")
	root.PersistentFlags().CountVarP(&quiet, "quiet", "q", "decrease log verbosity")

	root.AddCommand(newReleaseCommand(app))

	if err := root.ExecuteContext(context.Background()); err != nil {
		if code, ok := IsExitError(err); ok {
			return code
		}
		logger.Error("fatal", "err", err)
		return release.CodeFatal
	}
	return 0
}
