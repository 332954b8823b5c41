package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "jobforge",
	Short: "Tick-driven job scheduling engine",
	Long: `jobforge runs a colony-style job engine over a scenario world.

Each tick it reserves stockpile resources, ranks open jobs on the board,
assigns and preempts agents by utility, and drives every job through its
state machine: travel, hauling, work, effects and conditional spawns.

Runs are recorded in SQLite with their event log and periodic world
snapshots, so an interrupted run can be resumed.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user and project config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "State database path (overrides state.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write a debug log under .jobforge/logs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
