package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kbchat/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kbchat",
	Short: "kbchat - test console for knowledge-base backed agents",
	Long: `kbchat sends prompts to a deployed knowledge-base agent and shows what
came back: the extracted answer, its resolved citations and the agent's
reasoning trace grouped into pre-processing, orchestration and
post-processing steps.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive chat owns the terminal and logs to a file instead.
		if cmd == cmd.Root() {
			return nil
		}

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Attach(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kbchat version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kbchat %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <workspace>/.kbchat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current directory)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall timeout for non-interactive commands")

	askCmd.Flags().BoolVar(&showTrace, "trace", false, "Also print the reconstructed trace")
	replayCmd.Flags().BoolVar(&showTrace, "trace", false, "Also print the reconstructed trace")
	replayCmd.Flags().IntVar(&replayParallel, "parallel", 4, "Number of files normalized at once")
	watchCmd.Flags().BoolVar(&showTrace, "trace", false, "Also print the reconstructed trace")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before a change is re-run (default 300ms)")

	rootCmd.AddCommand(
		askCmd,
		replayCmd,
		watchCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
