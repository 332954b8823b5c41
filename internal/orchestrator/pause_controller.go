package orchestrator

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by WaitIfPaused once the run has been stopped.
var ErrStopped = errors.New("orchestrator stopped")

// PauseController gates the tick loop. A pause lets the tick in flight
// finish and holds the runner in WaitIfPaused before the next one; Stop ends
// the run. The monitor and signal handlers call it while the runner ticks.
type PauseController struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	// gate is closed whenever the runner may tick: not paused, or stopped.
	gate chan struct{}
}

// NewPauseController returns a controller that lets ticks through.
func NewPauseController() *PauseController {
	gate := make(chan struct{})
	close(gate)
	return &PauseController{gate: gate}
}

// Pause holds the runner before its next tick. It has no effect once stopped.
func (p *PauseController) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped {
		return
	}
	p.paused = true
	p.gate = make(chan struct{})
	debugLog("[runner] paused after the current tick")
}

// Resume lets ticks through again.
func (p *PauseController) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	if !p.stopped {
		close(p.gate)
	}
	debugLog("[runner] resumed")
}

// Toggle flips between paused and ticking and reports the new paused state.
func (p *PauseController) Toggle() bool {
	if p.IsPaused() {
		p.Resume()
		return false
	}
	p.Pause()
	return true
}

// Stop ends the run and releases a runner held by a pause.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.paused {
		close(p.gate)
	}
}

// IsPaused reports whether ticks are held.
func (p *PauseController) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// IsStopped reports whether Stop was called.
func (p *PauseController) IsStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// WaitIfPaused returns once the runner may tick. It returns ctx.Err() when
// the context ends during a pause and ErrStopped after Stop.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()

	select {
	case <-gate:
	default:
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.IsStopped() {
		return ErrStopped
	}
	return nil
}
