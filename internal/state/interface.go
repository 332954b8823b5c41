package state

import (
	"io"

	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/world"
)

// RunStore handles run-related persistence operations.
type RunStore interface {
	CreateRun(r *Run) error
	GetRun(id string) (*Run, error)
	UpdateRun(r *Run) error
	FinishRun(id string, status RunStatus, ticks uint64) error
	ListRuns(status *RunStatus, limit int) ([]Run, error)
	LatestRun() (*Run, error)
}

// EventStore handles the persisted event log.
type EventStore interface {
	AppendEvents(runID string, evs []events.Event) error
	ListEvents(runID string, f EventFilter) ([]events.Event, error)
	CountEvents(runID string) (int, error)
}

// SnapshotStore handles world snapshots.
type SnapshotStore interface {
	SaveSnapshot(runID string, tick uint64, snap world.Snapshot) error
	LatestSnapshot(runID string) (world.Snapshot, error)
	SnapshotTicks(runID string) ([]uint64, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore defines the interface for state persistence.
// It composes focused sub-interfaces so callers can depend on only what
// they use.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
	EventStore
	SnapshotStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore    = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ RunStore      = (*DB)(nil)
	_ EventStore    = (*DB)(nil)
	_ SnapshotStore = (*DB)(nil)
)
