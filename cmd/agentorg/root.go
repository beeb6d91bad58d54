package main

import (
	"os"

	"github.com/spf13/cobra"
)

var settingsPath string

var rootCmd = &cobra.Command{
	Use:   "agentorg",
	Short: "Simulate hierarchical organizations of reasoning agents",
	Long: `agentorg runs an organization of workers described in YAML. A goal is
handed to the root worker, which decomposes it by delegating subtasks down the
hierarchy until every task is completed or failed.

Workers reason with a deterministic heuristic (no API key needed) or with a
language model from Anthropic, Amazon Bedrock or OpenAI.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (YAML); AGENTORG_* environment variables override it")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newRunsCmd())
}
