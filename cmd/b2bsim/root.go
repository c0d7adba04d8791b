package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "b2bsim",
	Short: "B2B workflow and budget engine",
	Long: `b2bsim runs the quote and approval lifecycles and the budget
ledger behind an HTTP API, and can replay budget fixtures offline.

Settings come from B2B_* environment variables; flags override them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (env B2B_LOG_LEVEL)")
}
