// sysdiag is a system troubleshooting MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sysdiag",
	Short: "System troubleshooting and diagnostics over MCP.",
	Long: `sysdiag is a Model Context Protocol server exposing host diagnostics
(process listing, log tailing, network probes, environment inspection, and
whitelisted command execution) to automated callers. Every operation that
touches host primitives passes through a validation engine: command and
argument authorization, filesystem path sandboxing, secret redaction, and
bounded process execution.`,
	RunE:          runServe, // Default to serving over stdio.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
