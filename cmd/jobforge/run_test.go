package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/jobforge/internal/config"
	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/orchestrator"
	"github.com/ShayCichocki/jobforge/internal/state"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

const testScenario = `
agents:
  - entity_id: 1
    state: idle
jobs:
  - id: 2
    job_type: work
    priority: 1
`

func newTestSession(t *testing.T, ticks uint64) (*config.Config, *state.DB, string) {
	t.Helper()
	dir := t.TempDir()
	scenario := filepath.Join(dir, "colony.yaml")
	require.NoError(t, os.WriteFile(scenario, []byte(testScenario), 0644))

	cfg := config.Default()
	cfg.State.Path = filepath.Join(dir, "state.db")
	cfg.Run.Ticks = ticks
	cfg.Run.SnapshotEvery = 5

	db, err := openState(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return cfg, db, scenario
}

func TestSession_RecordsRun(t *testing.T) {
	cfg, db, scenario := newTestSession(t, 10)
	eventsOut := filepath.Join(t.TempDir(), "events.json")

	s, err := openSession(cfg, db, orchestrator.NopLogger(), sessionOptions{Scenario: scenario, EventsOut: eventsOut})
	require.NoError(t, err)
	defer s.Close()

	var hooked []uint64
	ran, runErr := s.Run(context.Background(), func(rep orchestrator.TickReport) {
		hooked = append(hooked, rep.Tick)
	})
	require.NoError(t, runErr)
	assert.Equal(t, uint64(10), ran)
	assert.Len(t, hooked, 10)

	status, err := s.Finish(context.Background(), runErr)
	require.NoError(t, err)
	assert.Equal(t, state.RunCompleted, status)

	r, err := db.GetRun(s.run.ID)
	require.NoError(t, err)
	assert.Equal(t, state.RunCompleted, r.Status)
	assert.Equal(t, uint64(10), r.Ticks)
	assert.NotNil(t, r.FinishedAt)

	completed, err := db.ListEvents(r.ID, state.EventFilter{Topic: events.TopicJobCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, models.EntityID(2), completed[0].Payload.Entity)

	ticks, err := db.SnapshotTicks(r.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 10}, ticks)

	l, err := events.LoadLog(eventsOut)
	require.NoError(t, err)
	n, err := db.CountEvents(r.ID)
	require.NoError(t, err)
	assert.Equal(t, n, l.Len(), "event log file matches the database")
}

func TestSession_CancelledContext(t *testing.T) {
	cfg, db, scenario := newTestSession(t, 0)

	s, err := openSession(cfg, db, orchestrator.NopLogger(), sessionOptions{Scenario: scenario})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, runErr := s.Run(ctx, nil)
	require.NoError(t, runErr)

	status, err := s.Finish(ctx, runErr)
	require.NoError(t, err)
	assert.Equal(t, state.RunCanceled, status)
}

func TestSession_Resume(t *testing.T) {
	cfg, db, scenario := newTestSession(t, 10)

	first, err := openSession(cfg, db, orchestrator.NopLogger(), sessionOptions{Scenario: scenario})
	require.NoError(t, err)
	_, err = first.Run(context.Background(), nil)
	require.NoError(t, err)
	first.Close()
	// Simulate a process that died after its last snapshot.
	require.NoError(t, db.FinishRun(first.run.ID, state.RunInterrupted, 10))

	cfg.Run.Ticks = 3
	s, err := openSession(cfg, db, orchestrator.NopLogger(), sessionOptions{ResumeID: first.run.ID})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, uint64(10), s.resumedAt)

	j, ok := s.world.Job(2)
	require.True(t, ok)
	assert.Equal(t, models.JobComplete, j.State)

	ran, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ran)

	status, err := s.Finish(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, state.RunCompleted, status)

	r, err := db.GetRun(first.run.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(13), r.Ticks)
}

func TestOpenSession_MissingScenario(t *testing.T) {
	cfg, db, _ := newTestSession(t, 1)
	_, err := openSession(cfg, db, orchestrator.NopLogger(), sessionOptions{Scenario: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)

	runs, err := db.ListRuns(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "no run is recorded for a scenario that fails to load")
}

func TestApplyRunFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	require.NoError(t, cmd.Flags().Set("ticks", "7"))
	require.NoError(t, cmd.Flags().Set("policy", "fifo"))

	cfg := config.Default()
	cfg.Run.TPS = 4
	applyRunFlags(cmd, cfg)

	assert.Equal(t, uint64(7), cfg.Run.Ticks)
	assert.Equal(t, "fifo", cfg.Engine.Policy)
	assert.Equal(t, 4.0, cfg.Run.TPS, "unset flags keep the configured value")
}

func TestFindRun_Prefix(t *testing.T) {
	_, db, _ := newTestSession(t, 1)
	r := state.NewRun("colony.yaml", "priority")
	require.NoError(t, db.CreateRun(r))

	got, err := findRun(db, r.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = findRun(db, "zzzz")
	assert.ErrorIs(t, err, state.ErrRunNotFound)
}

func TestFilterEvents(t *testing.T) {
	evs := []events.Event{
		{Topic: events.TopicJobAssigned, Tick: 1},
		{Topic: events.TopicJobCompleted, Tick: 2},
		{Topic: events.TopicJobAssigned, Tick: 3},
	}
	assert.Len(t, filterEvents(evs, "", 0), 3)
	assert.Len(t, filterEvents(evs, events.TopicJobAssigned, 0), 2)
	assert.Len(t, filterEvents(evs, "", 2), 2)
}

func TestPrintEvents(t *testing.T) {
	agent := models.EntityID(1)
	evs := []events.Event{
		{Topic: events.TopicJobAssigned, Tick: 4, Payload: events.Payload{Entity: 2, JobType: "work", AssignedTo: &agent}},
		{Topic: events.TopicResourceShortage, Tick: 5, Payload: events.Payload{Kind: "wood"}},
	}

	var buf bytes.Buffer
	require.NoError(t, printEvents(&buf, evs, false))
	assert.Contains(t, buf.String(), "job=2 type=work")
	assert.Contains(t, buf.String(), "agent=1")
	assert.Contains(t, buf.String(), "kind=wood")

	buf.Reset()
	require.NoError(t, printEvents(&buf, evs, true))
	assert.Contains(t, buf.String(), `"event_type":"job_assigned"`)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{90 * time.Minute, "1h30m"},
		{72 * time.Hour, "3d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefghijkl"))
	assert.Equal(t, "abc", shortID("abc"))
}
