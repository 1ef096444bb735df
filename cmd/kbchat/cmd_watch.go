package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbchat/internal/agent"
	"kbchat/internal/fixture"
)

var watchDebounce time.Duration

// watchCmd re-normalizes a fixture on every save
var watchCmd = &cobra.Command{
	Use:   "watch [file.json]",
	Short: "Re-run normalization whenever a recorded response changes",
	Long: `Prints the normalized form of a recorded response, then prints it again
each time the file is saved. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, _, err := loadConfig(false)
	if err != nil {
		return err
	}
	a := newApp(cfg)
	return a.watchFile(ctx, args[0], watchDebounce)
}

// watchFile renders path once and again after every settled change until
// ctx is done.
func (a *app) watchFile(ctx context.Context, path string, debounce time.Duration) error {
	w, err := fixture.NewWatcher(path, a.renderFixture)
	if err != nil {
		return err
	}
	w.SetDebounce(debounce)

	a.renderFixture(ctx, w.Path())
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	<-ctx.Done()
	w.Stop()

	if logger != nil {
		st := w.Stats()
		logger.Info("Stopped watching", zap.String("path", w.Path()), zap.Int("runs", st.Runs), zap.Int("errors", st.Errors))
	}
	return nil
}

func (a *app) renderFixture(_ context.Context, path string) {
	fmt.Fprintf(a.out, "==> %s (%s) <==\n", path, time.Now().Format("15:04:05"))
	resp, err := agent.LoadResponse(path)
	if err != nil {
		// keep watching; the next save may fix it
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	printDisplay(a.out, a.assembler.Assemble(resp), showTrace)
	fmt.Fprintln(a.out)
}
