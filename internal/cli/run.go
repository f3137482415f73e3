package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/preview/compiler"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
)

// linePrefix marks every log stream line printed to the terminal.
const linePrefix = ">> "

type runOptions struct {
	wait   time.Duration
	clicks []string
	pick   string
}

func newRunCommand(opts *options) *cobra.Command {
	var ro runOptions

	cmd := &cobra.Command{
		Use:   "run DIR",
		Short: "Run DIR in a local isolation boundary and print its log stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := bundle.LoadDir(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			return runBundle(cmd.Context(), cmd.OutOrStdout(), opts, b, ro)
		},
	}
	cmd.Flags().DurationVar(&ro.wait, "wait", 0, "keep the page alive this long so timers can fire")
	cmd.Flags().StringArrayVar(&ro.clicks, "click", nil, "simulate a click on the element matching a CSS selector or XPath (repeatable)")
	cmd.Flags().StringVar(&ro.pick, "pick", "", "inspect and pick the element matching a selector, printing its snapshot")
	return cmd
}

// runBundle executes b once and writes the log stream, then the picked
// element when requested.
func runBundle(ctx context.Context, out io.Writer, opts *options, b bundle.Bundle, ro runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	host := bridge.New(opts.hostConfig(), bridge.WithLogger(opts.logger()))
	host.Start()
	defer host.Close()

	if err := host.Reload(compiler.Compile(b)); err != nil {
		return err
	}
	if ro.wait > 0 {
		select {
		case <-time.After(ro.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, target := range ro.clicks {
		if err := host.Dispatch(ctx, sandbox.Input{Kind: sandbox.InputClick, Target: target}); err != nil {
			return err
		}
	}
	if ro.pick != "" {
		if err := pick(ctx, host, ro.pick); err != nil {
			return err
		}
	}
	if err := host.Flush(ctx); err != nil {
		return err
	}

	printLogs(out, host.Logs())
	if ro.pick != "" {
		snap, ok := host.Selection()
		if !ok {
			return errors.New("nothing was picked")
		}
		printSnapshot(out, snap.Display())
	}
	return nil
}

func pick(ctx context.Context, host *bridge.Host, target string) error {
	if _, err := host.ToggleInspect(ctx); err != nil {
		return err
	}
	if err := host.Dispatch(ctx, sandbox.Input{Kind: sandbox.InputMove, Target: target}); err != nil {
		return err
	}
	return host.Dispatch(ctx, sandbox.Input{Kind: sandbox.InputClick, Target: target})
}

func printLogs(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, linePrefix+line)
	}
}
