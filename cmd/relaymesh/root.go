package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "relaymesh",
	Short: "RelayMesh - OpenAI-compatible LLM inference gateway",
	Long: `RelayMesh is an open-source LLM inference gateway that routes each
request across many upstream model providers with automatic fallback.

It exposes an OpenAI-compatible HTTP API, providing:
  - Smart routing over a dynamic model registry (free-tier first)
  - Automatic rotation on upstream failure, rate limit, or outage
  - Circuit-breaker health tracking shared across requests
  - Streaming pass-through with commit-on-first-chunk semantics
  - Cost tracking, tenant budgets, and attempt-level audit evidence

For more information, visit: https://github.com/relaymesh/gateway`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Disable default completion command (we'll add our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
