package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jobforge/internal/state"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

var (
	statusLimit  int
	statusFilter string
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recorded runs",
	Long: `Display runs recorded in the state database.

Without arguments, lists recent runs and flags runs whose process died
without finishing (resume them with 'jobforge run --resume <id>').
With a run id (or unique prefix shown in the list), shows that run in detail.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of runs to list")
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "Only list runs with this status")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path, err := resolveDBPath(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded. Run 'jobforge run <scenario>' to start.")
		return nil
	}

	db, err := openState(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		r, err := findRun(db, args[0])
		if err != nil {
			return err
		}
		return displayRun(out, db, r)
	}

	interrupted, err := state.NewRecoveryManager(db).CheckForInterrupted()
	if err != nil {
		return fmt.Errorf("check interrupted runs: %w", err)
	}
	for _, ir := range interrupted {
		msg := fmt.Sprintf("Run %s (%s) was interrupted", shortID(ir.RunID), ir.Scenario)
		if ir.LastSnapshot != nil {
			msg += fmt.Sprintf("; resumable from tick %d", *ir.LastSnapshot)
		}
		printStatus(out, "⚠", msg, color.FgYellow)
	}
	if len(interrupted) > 0 {
		fmt.Fprintln(out)
	}

	var filter *state.RunStatus
	if statusFilter != "" {
		s := state.RunStatus(statusFilter)
		if !s.Valid() {
			return fmt.Errorf("unknown status %q", statusFilter)
		}
		filter = &s
	}
	runs, err := db.ListRuns(filter, statusLimit)
	if err != nil {
		return err
	}
	return displayRuns(out, runs)
}

// findRun resolves a full id or a unique id prefix.
func findRun(db *state.DB, id string) (*state.Run, error) {
	r, err := db.GetRun(id)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, state.ErrRunNotFound) {
		return nil, err
	}

	runs, err := db.ListRuns(nil, 0)
	if err != nil {
		return nil, err
	}
	var match *state.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run prefix %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrRunNotFound, id)
	}
	return match, nil
}

func displayRuns(w io.Writer, runs []state.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "%-10s %-12s %-8s %-8s %-8s %s\n", "RUN", "STATUS", "POLICY", "TICKS", "AGE", "SCENARIO")
	for _, r := range runs {
		c := statusColor(r.Status)
		fmt.Fprintf(w, "%-10s %s %-8s %-8d %-8s %s\n",
			shortID(r.ID),
			c.Sprintf("%-12s", r.Status),
			r.Policy,
			r.Ticks,
			formatDuration(time.Since(r.StartedAt)),
			r.Scenario)
	}
	return nil
}

func displayRun(w io.Writer, db *state.DB, r *state.Run) error {
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "  Scenario: %s\n", r.Scenario)
	fmt.Fprintf(w, "  Policy: %s\n", r.Policy)
	fmt.Fprintf(w, "  Status: %s\n", statusColor(r.Status).Sprint(r.Status))
	fmt.Fprintf(w, "  Started: %s (%s ago)\n", r.StartedAt.Format(time.RFC3339), formatDuration(time.Since(r.StartedAt)))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(r.FinishedAt.Sub(r.StartedAt)))
	}
	fmt.Fprintf(w, "  Ticks: %d\n", r.Ticks)

	n, err := db.CountEvents(r.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  Events: %d\n", n)

	ticks, err := db.SnapshotTicks(r.ID)
	if err != nil {
		return err
	}
	if len(ticks) > 0 {
		fmt.Fprintf(w, "  Snapshots: %d (latest tick %d)\n", len(ticks), ticks[len(ticks)-1])
	} else {
		fmt.Fprintln(w, "  Snapshots: none")
	}

	snap, err := db.LatestSnapshot(r.ID)
	if errors.Is(err, state.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}
	counts := map[models.JobState]int{}
	for _, j := range snap.Jobs {
		counts[j.State]++
	}
	fmt.Fprintf(w, "  Jobs at tick %d: %d", snap.Tick, len(snap.Jobs))
	for _, s := range []models.JobState{models.JobComplete, models.JobFailed, models.JobCancelled, models.JobInProgress, models.JobPending} {
		if counts[s] > 0 {
			fmt.Fprintf(w, ", %d %s", counts[s], s)
		}
	}
	fmt.Fprintln(w)
	return nil
}
