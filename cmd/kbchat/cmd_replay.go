package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kbchat/internal/agent"
	"kbchat/internal/session"
)

var replayParallel int

// replayCmd normalizes recorded responses
var replayCmd = &cobra.Command{
	Use:   "replay [file.json]...",
	Short: "Normalize recorded agent responses",
	Long: `Reads raw agent responses recorded on disk (a JSON document with
output_text/citations/trace, or an NDJSON event stream) and prints what the
chat would display for each, in argument order. No agent is called.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, _, err := loadConfig(false)
	if err != nil {
		return err
	}
	a := newApp(cfg)

	displays, err := a.replayFiles(ctx, args, replayParallel)
	if err != nil {
		return err
	}
	for i, d := range displays {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		fmt.Fprintf(a.out, "==> %s <==\n", args[i])
		printDisplay(a.out, d, showTrace)
	}
	return nil
}

// replayFiles assembles every file concurrently; results keep input order.
func (a *app) replayFiles(ctx context.Context, paths []string, parallel int) ([]session.Display, error) {
	out := make([]session.Display, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resp, err := agent.LoadResponse(path)
			if err != nil {
				return err
			}
			out[i] = a.assembler.Assemble(resp)
			if logger != nil {
				logger.Debug("Replayed file", zap.String("path", path), zap.String("strategy", out[i].Strategy))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
