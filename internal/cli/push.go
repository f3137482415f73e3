package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/playground/internal/client"
	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/preview/wire"
)

type pushOptions struct {
	server    string
	workspace string
	follow    bool
	wait      time.Duration
}

func newPushCommand() *cobra.Command {
	po := pushOptions{}

	cmd := &cobra.Command{
		Use:   "push DIR",
		Short: "Upload DIR to a playground server workspace",
		Long:  "push uploads the three buffers of DIR in one request. Without --workspace a new workspace is created. The resulting log stream is printed; --follow keeps streaming events.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := bundle.LoadDir(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return push(ctx, cmd.OutOrStdout(), client.New(client.DefaultConfig(po.server)), b, po)
		},
	}
	cmd.Flags().StringVar(&po.server, "server", "http://localhost:8000", "playground server URL")
	cmd.Flags().StringVarP(&po.workspace, "workspace", "w", "", "existing workspace id to update")
	cmd.Flags().BoolVarP(&po.follow, "follow", "f", false, "stream preview events until interrupted")
	cmd.Flags().DurationVar(&po.wait, "wait", 30*time.Second, "how long to wait for the server to come up")
	return cmd
}

func push(ctx context.Context, out io.Writer, c *client.Client, b bundle.Bundle, po pushOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	readyCtx, cancel := context.WithTimeout(ctx, po.wait)
	err := c.WaitReady(readyCtx)
	cancel()
	if err != nil {
		return err
	}

	id := po.workspace
	if id == "" {
		info, err := c.CreateWorkspace(ctx, "blank")
		if err != nil {
			return err
		}
		id = info.ID.String()
	}

	var stream *client.Stream
	if po.follow {
		// Open before uploading so no event of the new generation is missed.
		if stream, err = c.Stream(ctx, id); err != nil {
			return err
		}
		defer stream.Close()
	}

	info, err := c.ReplaceSources(ctx, id, b)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "workspace %s generation %d (%s)\n", id, info.Preview.Generation, info.Preview.State)
	if info.Preview.Error != "" {
		fmt.Fprintf(out, "!! preview failed: %s\n", info.Preview.Error)
	}

	if stream == nil {
		logs, err := c.Logs(ctx, id)
		if err != nil {
			return err
		}
		printLogs(out, logs.Logs)
		return nil
	}
	return follow(ctx, out, stream)
}

// follow prints stream frames until ctx ends or the server hangs up.
func follow(ctx context.Context, out io.Writer, s *client.Stream) error {
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	for {
		f, err := s.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch f.Type {
		case "log", "error":
			fmt.Fprintln(out, linePrefix+f.Message)
		case "reload":
			fmt.Fprintf(out, "== generation %d ==\n", f.Generation)
		case "failed":
			fmt.Fprintf(out, "!! preview failed: %s\n", f.Message)
		case "selection":
			if f.Selection != nil {
				printSnapshot(out, *f.Selection)
			}
		}
	}
}

func printSnapshot(out io.Writer, s wire.Snapshot) {
	fmt.Fprintf(out, "tag:   %s\nid:    %s\nclass: %s\nstyle: %s\n", s.Tag, s.ID, s.ClassName, s.InlineStyle)
}
