package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/jobforge/internal/world"
)

// ErrNoSnapshot is returned when a run has no stored snapshot.
var ErrNoSnapshot = errors.New("no snapshot")

// SaveSnapshot stores the world of a run at tick, replacing any earlier
// snapshot for the same tick.
func (db *DB) SaveSnapshot(runID string, tick uint64, snap world.Snapshot) error {
	snap.Tick = tick
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = db.Exec(`
		INSERT OR REPLACE INTO snapshots (run_id, tick, world, created_at)
		VALUES (?, ?, ?, ?)
	`, runID, tick, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the snapshot with the highest tick for a run.
func (db *DB) LatestSnapshot(runID string) (world.Snapshot, error) {
	var data string
	err := db.QueryRow(`
		SELECT world FROM snapshots WHERE run_id = ? ORDER BY tick DESC LIMIT 1
	`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Snapshot{}, fmt.Errorf("%w for run %s", ErrNoSnapshot, runID)
	}
	if err != nil {
		return world.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap world.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return world.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// SnapshotTicks returns the ticks with a stored snapshot, ascending.
func (db *DB) SnapshotTicks(runID string) ([]uint64, error) {
	rows, err := db.Query(`SELECT tick FROM snapshots WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var ticks []uint64
	for rows.Next() {
		var t uint64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan snapshot tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}
