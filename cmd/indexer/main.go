// Command indexer runs the streaming state indexer: the authenticated
// state engine, the relational writer pool, the event ingress, the root
// reconciler, and (via the submit subcommand) the brief submission driver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "indexer",
	Short:   "Streaming state indexer and fraud-proof brief generator",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("indexer version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./indexer-data", "Directory holding the authenticated-state store files")
	rootCmd.PersistentFlags().String("relational-dsn", "./indexer-data/relational.db", "Path to the relational (sqlite) store")
	rootCmd.PersistentFlags().String("admin-addr", "127.0.0.1:9100", "Address to serve /health, /ready, /live, and /metrics on")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
}
