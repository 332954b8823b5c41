package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func createRun(t *testing.T, db *DB, pid int) *Run {
	t.Helper()
	r := NewRun("scenario.yaml", "priority")
	r.PID = pid
	require.NoError(t, db.CreateRun(r))
	return r
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "state.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.Equal(t, DriverModernc, db.Driver())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenWithDriver_Unknown(t *testing.T) {
	_, err := OpenWithDriver("postgres", tempDBPath(t))
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Migrate())

	var version int
	require.NoError(t, db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version))
	assert.Equal(t, 3, version)
}

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	r := createRun(t, db, os.Getpid())
	require.NotEmpty(t, r.ID)

	got, err := db.GetRun(r.ID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, got.Status)
	assert.Equal(t, "scenario.yaml", got.Scenario)
	assert.WithinDuration(t, r.StartedAt, got.StartedAt, time.Millisecond)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, db.FinishRun(r.ID, RunCompleted, 42))
	got, err = db.GetRun(r.ID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Equal(t, uint64(42), got.Ticks)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.Status.IsFinal())
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetRun("missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = db.UpdateRun(&Run{ID: "missing", Status: RunFailed})
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = db.LatestRun()
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	first := createRun(t, db, 0)
	second := NewRun("other.yaml", "fifo")
	second.StartedAt = first.StartedAt.Add(time.Second)
	require.NoError(t, db.CreateRun(second))
	require.NoError(t, db.FinishRun(first.ID, RunFailed, 3))

	all, err := db.ListRuns(nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	failed := RunFailed
	onlyFailed, err := db.ListRuns(&failed, 0)
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, first.ID, onlyFailed[0].ID)

	latest, err := db.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestEvents_AppendAndList(t *testing.T) {
	db := setupTestDB(t)
	r := createRun(t, db, 0)

	evs := []events.Event{
		{Topic: events.TopicJobAssigned, Tick: 1, Payload: events.Payload{Entity: 5, JobType: "build", AssignedTo: models.IDPtr(2)}},
		{Topic: events.TopicJobProgressed, Tick: 2, Payload: events.Payload{Entity: 5, Progress: 1.5}},
		{Topic: events.TopicJobCompleted, Tick: 4, Payload: events.Payload{Entity: 5, State: models.JobComplete}},
	}
	require.NoError(t, db.AppendEvents(r.ID, evs))

	n, err := db.CountEvents(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := db.ListEvents(r.ID, EventFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, events.TopicJobAssigned, got[0].Topic)
	require.NotNil(t, got[0].Payload.AssignedTo)
	assert.Equal(t, models.EntityID(2), *got[0].Payload.AssignedTo)
	assert.Equal(t, 1.5, got[1].Payload.Progress)

	since, err := db.ListEvents(r.ID, EventFilter{SinceTick: 2})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	completed, err := db.ListEvents(r.ID, EventFilter{Topic: events.TopicJobCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, models.JobComplete, completed[0].Payload.State)
}

func TestRecorder_FlushesBusEvents(t *testing.T) {
	db := setupTestDB(t)
	r := createRun(t, db, 0)
	bus := events.NewBus()
	rec := NewRecorder(db, r.ID, bus)

	bus.Send(events.TopicJobAssigned, 1, events.Payload{Entity: 7})
	bus.Send(events.TopicJobCompleted, 3, events.Payload{Entity: 7})
	assert.Equal(t, 2, rec.Pending())

	n, err := rec.Flush()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, rec.Pending())

	n, err = rec.Flush()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := db.CountEvents(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSnapshots(t *testing.T) {
	db := setupTestDB(t)
	r := createRun(t, db, 0)

	_, err := db.LatestSnapshot(r.ID)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 7}))
	j := models.NewJob("build", 3)
	j.ID = 2
	w.PutJob(j)

	require.NoError(t, db.SaveSnapshot(r.ID, 5, w.Snapshot(5)))
	require.NoError(t, db.SaveSnapshot(r.ID, 10, w.Snapshot(10)))
	require.NoError(t, db.SaveSnapshot(r.ID, 10, w.Snapshot(10)))

	ticks, err := db.SnapshotTicks(r.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 10}, ticks)

	snap, err := db.LatestSnapshot(r.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), snap.Tick)

	restored, err := world.FromSnapshot(snap)
	require.NoError(t, err)
	job, ok := restored.Job(2)
	require.True(t, ok)
	assert.Equal(t, "build", job.JobType)
	sp, ok := restored.Stockpile(1)
	require.True(t, ok)
	assert.Equal(t, int64(7), sp.Amount("wood"))
}

func TestRecovery(t *testing.T) {
	db := setupTestDB(t)
	live := createRun(t, db, os.Getpid())
	dead := createRun(t, db, 0)

	w := world.New()
	j := models.NewJob("dig", 1)
	j.ID = 4
	w.PutJob(j)
	require.NoError(t, db.SaveSnapshot(dead.ID, 8, w.Snapshot(8)))

	rm := NewRecoveryManager(db)
	found, err := rm.CheckForInterrupted()
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, dead.ID, found[0].RunID)
	require.NotNil(t, found[0].LastSnapshot)
	assert.Equal(t, uint64(8), *found[0].LastSnapshot)

	n, err := rm.MarkInterrupted()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := db.GetRun(dead.ID)
	require.NoError(t, err)
	assert.Equal(t, RunInterrupted, got.Status)

	restored, tick, err := rm.Resume(dead.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), tick)
	_, ok := restored.Job(4)
	assert.True(t, ok)

	got, err = db.GetRun(dead.ID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, got.Status)
	assert.Equal(t, os.Getpid(), got.PID)

	stillLive, err := db.GetRun(live.ID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, stillLive.Status)
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)
	old := NewRun("old.yaml", "priority")
	old.StartedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.CreateRun(old))
	require.NoError(t, db.AppendEvents(old.ID, []events.Event{{Topic: events.TopicJobAssigned, Tick: 1}}))
	fresh := createRun(t, db, 0)

	n, err := db.PurgeOldRuns(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetRun(old.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = db.GetRun(fresh.ID)
	assert.NoError(t, err)
	count, err := db.CountEvents(old.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

type failingEventStore struct {
	EventStore
	fail  bool
	saved int
}

func (f *failingEventStore) AppendEvents(_ string, evs []events.Event) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.saved += len(evs)
	return nil
}

func TestRecorder_KeepsEventsOnError(t *testing.T) {
	store := &failingEventStore{fail: true}
	bus := events.NewBus()
	rec := NewRecorder(store, "run", bus)

	bus.Send(events.TopicJobAssigned, 1, events.Payload{Entity: 1})
	bus.Send(events.TopicJobCompleted, 2, events.Payload{Entity: 1})

	_, err := rec.Flush()
	require.Error(t, err)
	assert.Equal(t, 2, rec.Pending())

	store.fail = false
	n, err := rec.Flush()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, store.saved)
	assert.Equal(t, 0, rec.Pending())
}
