package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/preview/compiler"
)

func newBenchCommand(opts *options) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "bench DIR",
		Short: "Measure how long DIR takes to compile, load and settle in a fresh boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := bundle.LoadDir(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			res, err := bench(cmd.Context(), opts, b, runs)
			if err != nil {
				return err
			}
			res.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVarP(&runs, "runs", "n", 10, "number of reload cycles")
	return cmd
}

// benchResult summarises reload latencies.
type benchResult struct {
	Runs   int
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	Max    time.Duration
}

// bench reloads b runs times, timing each cycle up to the flush barrier so
// the top-level script has finished.
func bench(ctx context.Context, opts *options, b bundle.Bundle, runs int) (benchResult, error) {
	if runs < 1 {
		return benchResult{}, errors.New("runs must be at least 1")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	host := bridge.New(opts.hostConfig(), bridge.WithLogger(opts.logger()))
	host.Start()
	defer host.Close()

	samples := make([]float64, 0, runs)
	for range runs {
		if err := ctx.Err(); err != nil {
			return benchResult{}, err
		}
		start := time.Now()
		if err := host.Reload(compiler.Compile(b)); err != nil {
			return benchResult{}, err
		}
		if err := host.Flush(ctx); err != nil {
			return benchResult{}, err
		}
		samples = append(samples, float64(time.Since(start)))
	}
	return summarize(samples), nil
}

func summarize(samples []float64) benchResult {
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	mean, std := stat.MeanStdDev(samples, nil)
	if len(samples) < 2 {
		std = 0
	}
	return benchResult{
		Runs:   len(samples),
		Mean:   time.Duration(mean),
		StdDev: time.Duration(std),
		P50:    time.Duration(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		P95:    time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
		Max:    time.Duration(floats.Max(samples)),
	}
}

func (r benchResult) print(out io.Writer) {
	fmt.Fprintf(out, "runs:   %d\nmean:   %v\nstddev: %v\np50:    %v\np95:    %v\nmax:    %v\n",
		r.Runs, r.Mean, r.StdDev, r.P50, r.P95, r.Max)
}
