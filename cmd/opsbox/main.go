// Opsbox — remote operations toolbox for sandboxed command execution,
// file downloads, and log retrieval over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "opsbox",
	Short: "Opsbox — HTTP service for sandboxed command execution, downloads, and log retrieval.",
	Long: `Opsbox is a small operations service exposing three guarded HTTP operations:
executing shell commands inside a sandbox directory, downloading files into a
guarded downloads directory, and tailing log files from a guarded logs directory.`,
	RunE:          runServe, // Default to server mode.
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
