package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Log records every event published on the buses it is attached to.
type Log struct {
	mu     sync.Mutex
	events []Event
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Attach subscribes the log to bus.
func (l *Log) Attach(bus *Bus) {
	bus.Subscribe(l.Record)
}

// Record appends ev.
func (l *Log) Record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a copy of the recorded events in order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Since returns events recorded at or after tick.
func (l *Log) Since(tick uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Tick >= tick {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Clear drops all recorded events.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// Save writes the log as a JSON array. The file is replaced atomically.
func (l *Log) Save(path string) error {
	data, err := json.MarshalIndent(l.Events(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode event log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create event log directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write event log: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace event log: %w", err)
	}
	return nil
}

// LoadLog reads a log written by Save.
func LoadLog(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	var evs []Event
	if err := json.Unmarshal(data, &evs); err != nil {
		return nil, fmt.Errorf("decode event log: %w", err)
	}
	return &Log{events: evs}, nil
}

// Replay publishes every recorded event onto bus in order and returns how many were sent.
func (l *Log) Replay(bus *Bus) int {
	evs := l.Events()
	for _, ev := range evs {
		bus.Publish(ev)
	}
	return len(evs)
}
