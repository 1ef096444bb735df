package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbchat/internal/session"
	"kbchat/internal/trace"
)

var showTrace bool

// askCmd runs a single turn
var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send one prompt to the agent and print the answer",
	Long: `Sends the prompt as a single turn of a fresh session (or of the stored
session when the session store is enabled) and prints the answer with its
citation block. With --trace the reconstructed trace follows.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
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

	cfg, ws, err := loadConfig(true)
	if err != nil {
		return err
	}
	a := newApp(cfg)
	if err := a.connect(ctx, ws, true); err != nil {
		return err
	}
	defer a.Close()

	prompt := joinArgs(args)
	logger.Info("Asking agent",
		zap.String("agent", cfg.Agent.ID),
		zap.String("session", a.conv.Session().ID()),
		zap.Int("prompt_len", len(prompt)))

	d, err := a.conv.Submit(ctx, prompt)
	if err != nil {
		return err
	}
	printDisplay(a.out, d, showTrace)
	return nil
}

// printDisplay writes one assembled turn.
func printDisplay(w io.Writer, d session.Display, withTrace bool) {
	fmt.Fprintln(w, d.Text)
	for _, diag := range d.Diagnostics {
		fmt.Fprintf(w, "warning: %s\n", diag)
	}
	if withTrace {
		fmt.Fprintln(w)
		fmt.Fprint(w, trace.Render(d.Phases))
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
