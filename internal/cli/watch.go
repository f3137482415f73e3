package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/preview/compiler"
)

// settle coalesces bursts of file events (editors often write twice).
const settle = 100 * time.Millisecond

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch DIR",
		Short: "Re-run DIR in a local boundary whenever its sources change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), opts, args[0])
		},
	}
}

// watch runs dir once, then again after every relevant change, streaming
// the log stream of each generation until ctx ends.
func watch(ctx context.Context, out io.Writer, opts *options, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := addTree(watcher, dir); err != nil {
		return err
	}

	host := bridge.New(opts.hostConfig(), bridge.WithLogger(opts.logger()))
	host.Start()
	defer host.Close()

	events, cancel := host.Subscribe()
	defer cancel()

	rebuild := func() {
		b, _, err := bundle.LoadDir(dir)
		if err != nil {
			fmt.Fprintf(out, "!! %v\n", err)
			return
		}
		_ = host.Reload(compiler.Compile(b))
	}
	rebuild()

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			printEvent(out, ev)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addTree(watcher, ev.Name)
				}
			}
			rel, err := filepath.Rel(dir, ev.Name)
			if err != nil || !bundle.Watched(filepath.ToSlash(rel)) {
				continue
			}
			timer = time.After(settle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "!! watch: %v\n", err)
		case <-timer:
			timer = nil
			rebuild()
		}
	}
}

// addTree watches dir and every directory below it. Dot directories are
// skipped.
func addTree(w *fsnotify.Watcher, dir string) error {
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir || !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func printEvent(out io.Writer, ev bridge.Event) {
	switch ev.Type {
	case bridge.EventReload:
		fmt.Fprintf(out, "== generation %d ==\n", ev.Generation)
	case bridge.EventLog, bridge.EventError:
		fmt.Fprintln(out, linePrefix+ev.Text)
	case bridge.EventFailed:
		fmt.Fprintf(out, "!! preview failed: %s\n", ev.Text)
	}
}
