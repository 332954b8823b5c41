package state

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/ShayCichocki/jobforge/internal/world"
)

// InterruptedRun describes a run left in the running state by a process
// that no longer exists.
type InterruptedRun struct {
	RunID        string
	Scenario     string
	StartedAt    time.Time
	PID          int
	LastSnapshot *uint64
}

// RecoveryManager handles detection and recovery of interrupted runs.
type RecoveryManager struct {
	db *DB
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db}
}

// CheckForInterrupted returns runs marked running whose process is gone.
// Runs owned by a live process are skipped.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedRun, error) {
	status := RunRunning
	runs, err := rm.db.ListRuns(&status, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var out []InterruptedRun
	for _, r := range runs {
		if isProcessAlive(r.PID) {
			continue
		}
		ir := InterruptedRun{RunID: r.ID, Scenario: r.Scenario, StartedAt: r.StartedAt, PID: r.PID}
		ticks, err := rm.db.SnapshotTicks(r.ID)
		if err != nil {
			return nil, err
		}
		if len(ticks) > 0 {
			last := ticks[len(ticks)-1]
			ir.LastSnapshot = &last
		}
		out = append(out, ir)
	}
	return out, nil
}

// MarkInterrupted sets every run found by CheckForInterrupted to
// interrupted. Returns the number of runs updated.
func (rm *RecoveryManager) MarkInterrupted() (int, error) {
	runs, err := rm.CheckForInterrupted()
	if err != nil {
		return 0, err
	}
	for _, ir := range runs {
		r, err := rm.db.GetRun(ir.RunID)
		if err != nil {
			return 0, err
		}
		now := time.Now()
		r.Status = RunInterrupted
		r.FinishedAt = &now
		if err := rm.db.UpdateRun(r); err != nil {
			return 0, fmt.Errorf("mark run %s interrupted: %w", ir.RunID, err)
		}
	}
	return len(runs), nil
}

// Resume rebuilds the world of a run from its latest snapshot and returns
// it with the snapshot's tick. The run is marked running under this process.
func (rm *RecoveryManager) Resume(runID string) (*world.World, uint64, error) {
	r, err := rm.db.GetRun(runID)
	if err != nil {
		return nil, 0, err
	}
	if r.Status == RunCompleted {
		return nil, 0, fmt.Errorf("run %s already completed", runID)
	}

	snap, err := rm.db.LatestSnapshot(runID)
	if err != nil {
		return nil, 0, err
	}
	w, err := world.FromSnapshot(snap)
	if err != nil {
		return nil, 0, fmt.Errorf("restore run %s: %w", runID, err)
	}

	r.Status = RunRunning
	r.PID = os.Getpid()
	r.FinishedAt = nil
	r.Ticks = snap.Tick
	if err := rm.db.UpdateRun(r); err != nil {
		return nil, 0, err
	}
	return w, snap.Tick, nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 only checks that the process exists.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
