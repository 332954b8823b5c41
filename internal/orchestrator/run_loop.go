package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// Mover walks agents along their assigned paths between ticks.
type Mover interface {
	StepMovement() int
}

// SnapshotFunc persists the world after tick.
type SnapshotFunc func(ctx context.Context, tick uint64) error

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTicksPerSecond paces the loop with a token bucket. Zero or less runs unpaced.
func WithTicksPerSecond(tps float64) RunnerOption {
	return func(r *Runner) {
		if tps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(tps), 1)
		} else {
			r.limiter = nil
		}
	}
}

// WithMover sets the movement system stepped after every tick.
func WithMover(m Mover) RunnerOption {
	return func(r *Runner) { r.mover = m }
}

// WithSnapshots calls fn after every n-th tick. Zero disables snapshots.
func WithSnapshots(n uint64, fn SnapshotFunc) RunnerOption {
	return func(r *Runner) {
		r.snapshotEvery = n
		r.snapshot = fn
	}
}

// WithTickHook calls fn with the report of every completed tick.
func WithTickHook(fn func(TickReport)) RunnerOption {
	return func(r *Runner) { r.onTick = fn }
}

// WithPauseController shares a pause controller with the caller.
func WithPauseController(p *PauseController) RunnerOption {
	return func(r *Runner) {
		if p != nil {
			r.pause = p
		}
	}
}

// Runner drives an Orchestrator tick after tick.
type Runner struct {
	orch          *Orchestrator
	pause         *PauseController
	limiter       *rate.Limiter
	mover         Mover
	snapshotEvery uint64
	snapshot      SnapshotFunc
	onTick        func(TickReport)
}

// NewRunner creates a Runner for o. Pacing and snapshots default to the
// orchestrator's loop policy.
func NewRunner(o *Orchestrator, opts ...RunnerOption) *Runner {
	r := &Runner{orch: o, pause: NewPauseController()}
	WithTicksPerSecond(o.policy.Loop.TicksPerSecond)(r)
	r.snapshotEvery = o.policy.Loop.SnapshotEvery
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pause returns the runner's pause controller.
func (r *Runner) Pause() *PauseController {
	return r.pause
}

// Run executes ticks until n ticks have run, the context is cancelled or
// the runner is stopped. n == 0 runs until cancelled or stopped. It returns
// the number of ticks run. Cancellation and Stop are not errors.
func (r *Runner) Run(ctx context.Context, n uint64) (uint64, error) {
	var ran uint64
	for n == 0 || ran < n {
		if err := r.pause.WaitIfPaused(ctx); err != nil {
			return ran, quiet(err)
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ran, nil
				}
				return ran, fmt.Errorf("pace tick: %w", err)
			}
		}

		rep, err := r.orch.Tick(ctx)
		if err != nil {
			return ran, quiet(err)
		}
		ran++

		if r.mover != nil {
			moved := r.mover.StepMovement()
			if moved > 0 {
				debugLog("[runner] tick %d moved %d agents", rep.Tick, moved)
			}
		}

		if r.snapshot != nil && r.snapshotEvery > 0 && rep.Tick%r.snapshotEvery == 0 {
			if err := r.snapshot(ctx, rep.Tick); err != nil {
				return ran, fmt.Errorf("snapshot tick %d: %w", rep.Tick, err)
			}
		}
		if r.onTick != nil {
			r.onTick(rep)
		}
	}
	return ran, nil
}

// quiet turns the expected ways of ending a run into a nil error.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrStopped) {
		return nil
	}
	return err
}
