package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

type countingMover struct{ steps int }

func (m *countingMover) StepMovement() int {
	m.steps++
	return 0
}

func TestRunner_RunsTicksAndSnapshots(t *testing.T) {
	o, _ := newOrchestrator(t, world.New())
	mover := &countingMover{}
	var snaps []uint64
	var reports []uint64

	r := NewRunner(o,
		WithMover(mover),
		WithSnapshots(2, func(_ context.Context, tick uint64) error {
			snaps = append(snaps, tick)
			return nil
		}),
		WithTickHook(func(rep TickReport) { reports = append(reports, rep.Tick) }),
	)

	ran, err := r.Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), ran)
	assert.Equal(t, 5, mover.steps)
	assert.Equal(t, []uint64{2, 4}, snaps)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, reports)
	assert.Equal(t, uint64(5), o.Context().Tick())
}

func TestRunner_SnapshotErrorStops(t *testing.T) {
	o, _ := newOrchestrator(t, world.New())
	boom := errors.New("disk full")
	r := NewRunner(o, WithSnapshots(1, func(context.Context, uint64) error { return boom }))

	ran, err := r.Run(context.Background(), 3)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), ran)
}

func TestRunner_TickErrorStops(t *testing.T) {
	w := world.New()
	putJob(w, 1, 0, func(j *models.Job) { j.Dependencies = models.DependsOn(2) })
	putJob(w, 2, 0, func(j *models.Job) { j.Dependencies = models.DependsOn(1) })
	o, _ := newOrchestrator(t, w)

	ran, err := NewRunner(o).Run(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, uint64(0), ran)
}

func TestRunner_StopEndsUnboundedRun(t *testing.T) {
	o, _ := newOrchestrator(t, world.New())
	r := NewRunner(o, WithTicksPerSecond(1000))

	var ran uint64
	var err error
	done := make(chan struct{})
	go func() {
		ran, err = r.Run(context.Background(), 0)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	r.Pause().Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
	require.NoError(t, err)
	assert.Positive(t, ran)
}

func TestRunner_PausedRunEndsOnCancel(t *testing.T) {
	o, _ := newOrchestrator(t, world.New())
	pc := NewPauseController()
	pc.Pause()
	r := NewRunner(o, WithPauseController(pc))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ran, err := r.Run(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), ran)
}

func TestPauseController(t *testing.T) {
	pc := NewPauseController()
	assert.False(t, pc.IsPaused())
	assert.True(t, pc.Toggle())
	assert.True(t, pc.IsPaused())

	released := make(chan error, 1)
	go func() { released <- pc.WaitIfPaused(context.Background()) }()

	select {
	case <-released:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	assert.False(t, pc.Toggle())
	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitIfPaused did not return after resume")
	}

	pc.Stop()
	assert.True(t, pc.IsStopped())
	assert.ErrorIs(t, pc.WaitIfPaused(context.Background()), ErrStopped)
}

func TestPauseController_StopReleasesPausedWait(t *testing.T) {
	pc := NewPauseController()
	pc.Pause()

	released := make(chan error, 1)
	go func() { released <- pc.WaitIfPaused(context.Background()) }()

	pc.Stop()
	select {
	case err := <-released:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not release a paused runner")
	}

	assert.NotPanics(t, pc.Resume)
	pc.Pause()
	assert.False(t, pc.IsPaused(), "a stopped run cannot be paused again")
	assert.ErrorIs(t, pc.WaitIfPaused(context.Background()), ErrStopped)
}

func TestDebugLogger(t *testing.T) {
	nop, err := NewDebugLogger(LogOptions{})
	require.NoError(t, err)
	nop.Log("ignored %d", 1)
	assert.NoError(t, nop.Close())

	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := NewDebugLogger(LogOptions{Path: path, Level: "info", MaxSizeMB: 1})
	require.NoError(t, err)
	l.Zap().Info("hello")
	require.NoError(t, l.Close())
	assert.FileExists(t, path)

	_, err = NewDebugLogger(LogOptions{Path: path, Level: "loud"})
	assert.Error(t, err)

	var missing *DebugLogger
	missing.Log("nil receivers are fine")
	assert.NotNil(t, missing.Zap())
}
