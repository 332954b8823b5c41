package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunCanceled    RunStatus = "canceled"
	RunInterrupted RunStatus = "interrupted"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunCompleted, RunFailed, RunCanceled, RunInterrupted:
		return true
	}
	return false
}

// IsFinal reports whether the run has ended.
func (s RunStatus) IsFinal() bool {
	return s != RunRunning
}

// Run represents one execution of a scenario.
type Run struct {
	ID         string     `json:"id"`
	Scenario   string     `json:"scenario"`
	Policy     string     `json:"policy"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Ticks      uint64     `json:"ticks"`
	PID        int        `json:"pid"`
	Status     RunStatus  `json:"status"`
}

// NewRun returns a running Run with a fresh id owned by this process.
func NewRun(scenario, policy string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		Policy:    policy,
		StartedAt: time.Now(),
		PID:       os.Getpid(),
		Status:    RunRunning,
	}
}

// Run CRUD operations

// CreateRun creates a new run.
func (db *DB) CreateRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, scenario, policy, started_at, finished_at, ticks, pid, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Scenario, r.Policy, formatTime(r.StartedAt), nullableTime(r.FinishedAt), r.Ticks, r.PID, string(r.Status))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns ErrRunNotFound if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, scenario, policy, started_at, finished_at, ticks, pid, status
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// UpdateRun updates a run.
func (db *DB) UpdateRun(r *Run) error {
	result, err := db.Exec(`
		UPDATE runs SET scenario = ?, policy = ?, finished_at = ?, ticks = ?, pid = ?, status = ?
		WHERE id = ?
	`, r.Scenario, r.Policy, nullableTime(r.FinishedAt), r.Ticks, r.PID, string(r.Status), r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, r.ID)
	}
	return nil
}

// FinishRun stamps the final status and tick count of a run.
func (db *DB) FinishRun(id string, status RunStatus, ticks uint64) error {
	r, err := db.GetRun(id)
	if err != nil {
		return err
	}
	now := time.Now()
	r.Status = status
	r.Ticks = ticks
	r.FinishedAt = &now
	return db.UpdateRun(r)
}

// ListRuns returns runs, newest first. A nil status lists every run;
// limit <= 0 means no limit.
func (db *DB) ListRuns(status *RunStatus, limit int) ([]Run, error) {
	query := `SELECT id, scenario, policy, started_at, finished_at, ticks, pid, status FROM runs`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (*Run, error) {
	runs, err := db.ListRuns(nil, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	var status string
	if err := row.Scan(&r.ID, &r.Scenario, &r.Policy, &startedAt, &finishedAt, &r.Ticks, &r.PID, &status); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	r.Status = RunStatus(status)
	return &r, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
