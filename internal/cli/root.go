package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/playground/internal/infrastructure/config"
	"github.com/GriffinCanCode/playground/internal/infrastructure/logging"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	timeout  time.Duration
	logLevel string
}

// NewRootCommand builds the playctl command tree.
func NewRootCommand() *cobra.Command {
	env := config.LoadOrDefault()
	opts := &options{}

	root := &cobra.Command{
		Use:           "playctl",
		Short:         "playctl – compile, run and push playground bundles",
		Long:          "playctl compiles a directory of markup, style and script into a preview document, runs it in a local isolation boundary, or uploads it to a playground server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", env.Sandbox.Timeout, "per-task script time limit")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "diagnostic log level (debug, info, warn, error)")

	root.AddCommand(
		newCompileCommand(),
		newRunCommand(opts),
		newWatchCommand(opts),
		newPushCommand(),
		newBenchCommand(opts),
		newTemplatesCommand(),
	)
	return root
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) logger() *logging.Logger {
	return logging.NewCLI(o.logLevel)
}

func (o *options) hostConfig() bridge.Config {
	cfg := bridge.DefaultConfig()
	cfg.Sandbox = sandbox.Config{Timeout: o.timeout}
	return cfg
}
