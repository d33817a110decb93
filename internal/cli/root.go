// Package cli implements the lumen command-line interface using Cobra:
// one subcommand per file, each operating on a freshly constructed
// *daemon.Daemon for its own lifetime.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumenhq/lumen/internal/logx"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "lumen",
	Short:         "lumen — run local LLMs with zero network, zero accounts",
	Long:          `lumen resolves, downloads, and serves GGUF and TensorRT-LLM models locally.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logx.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "duplicate logs to stderr")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCodeFor(err))
	}
}
