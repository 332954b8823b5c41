package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/jobforge/internal/events"
)

// AppendEvents stores evs for a run in one transaction.
func (db *DB) AppendEvents(runID string, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	return db.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO events (run_id, tick, topic, entity, payload, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare event insert: %w", err)
		}
		defer stmt.Close()

		for _, ev := range evs {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("encode event payload: %w", err)
			}
			ts := ev.Timestamp
			if ts.IsZero() {
				ts = time.Now()
			}
			if _, err := stmt.Exec(runID, ev.Tick, string(ev.Topic), uint32(ev.Payload.Entity), string(payload), formatTime(ts)); err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
		return nil
	})
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	// SinceTick keeps events at or after this tick.
	SinceTick uint64
	// Topic keeps one topic when set.
	Topic events.Topic
	// Limit caps the result; zero means no limit.
	Limit int
}

// ListEvents returns a run's events in recording order.
func (db *DB) ListEvents(runID string, f EventFilter) ([]events.Event, error) {
	query := `SELECT tick, topic, payload, recorded_at FROM events WHERE run_id = ? AND tick >= ?`
	args := []any{runID, f.SinceTick}
	if f.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, string(f.Topic))
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var ev events.Event
		var topic, payload, recordedAt string
		if err := rows.Scan(&ev.Tick, &topic, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		ev.Topic = events.Topic(topic)
		ev.Timestamp, _ = parseTime(recordedAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountEvents returns the number of events stored for a run.
func (db *DB) CountEvents(runID string) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM events WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Recorder buffers events sent on a bus and writes them to a run in batches.
type Recorder struct {
	store EventStore
	runID string

	mu      sync.Mutex
	pending []events.Event
}

// NewRecorder creates a Recorder for runID and subscribes it to bus.
func NewRecorder(store EventStore, runID string, bus *events.Bus) *Recorder {
	r := &Recorder{store: store, runID: runID}
	if bus != nil {
		bus.Subscribe(r.record)
	}
	return r
}

func (r *Recorder) record(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, ev)
}

// Flush writes the buffered events and returns how many were written.
// On error the events stay buffered for the next flush.
func (r *Recorder) Flush() (int, error) {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if err := r.store.AppendEvents(r.runID, batch); err != nil {
		r.mu.Lock()
		r.pending = append(batch, r.pending...)
		r.mu.Unlock()
		return 0, err
	}
	return len(batch), nil
}

// Pending returns the number of buffered events.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
