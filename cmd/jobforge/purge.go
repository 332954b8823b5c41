package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var purgeOlderThan time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old runs from the state database",
	Long: `Delete runs started before the cutoff together with their events and
snapshots.

Examples:
  jobforge purge                    # Runs older than 30 days
  jobforge purge --older-than 24h   # Runs older than a day`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "Delete runs started before now minus this duration")
}

func runPurge(cmd *cobra.Command, args []string) error {
	if purgeOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openState(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.PurgeOldRuns(purgeOlderThan)
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Purged %d run(s) older than %s", n, formatDuration(purgeOlderThan)), color.FgGreen)
	return nil
}
