package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sysdiag version.",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("sysdiag %s (%s)\n", version, commit)
	},
}
