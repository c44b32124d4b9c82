// Package main is the entry point of the rokstats service and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rokstats/rokstats/cmd/rokstats/commands"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "rokstats",
		Short: "Snapshot-delta rankings for Rise of Kingdoms statistics",
		Long: `rokstats ranks players and kingdoms by counters, counter gains and
derived scores such as DKP between two points in time.

Commands:
  serve     Run the HTTP API
  migrate   Apply or roll back database migrations
  rank      Print a ranking table
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"YAML configuration file (defaults to $ROKSTATS_CONFIG)")

	rootCmd.AddCommand(commands.NewServeCommand(&configPath))
	rootCmd.AddCommand(commands.NewMigrateCommand(&configPath))
	rootCmd.AddCommand(commands.NewRankCommand(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rokstats %s (commit: %s)\n", version, commit)
		},
	}
}
