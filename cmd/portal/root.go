package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "portal",
		Short:         "Phone signup and session portal",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PORTAL_CONFIG"), "path to the YAML config file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newTokensCmd(&configPath),
		newOwnerCmd(&configPath),
	)
	return rootCmd
}
