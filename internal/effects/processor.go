package effects

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/deps"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// Processor applies a job type's effects incrementally and rolls them back
// when the job fails. Progress is recorded in job.AppliedEffects as indices
// into the effect list.
type Processor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewProcessor creates a Processor backed by registry.
func NewProcessor(registry *Registry, opts ...Option) *Processor {
	if registry == nil {
		registry = NewRegistry()
	}
	p := &Processor{registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the handler registry.
func (p *Processor) Registry() *Registry {
	return p.registry
}

// ConditionHolds evaluates an effect condition. A nil condition holds; a
// condition with neither predicate does not.
func ConditionHolds(s deps.Store, c *models.EffectCondition) (bool, error) {
	if c == nil {
		return true, nil
	}
	switch {
	case c.WorldState != nil:
		return deps.WorldStateHolds(s, c.WorldState)
	case c.EntityState != nil:
		return deps.EntityStateHolds(s, c.EntityState)
	default:
		return false, nil
	}
}

// ApplyNext applies the first effect that is not yet applied and whose
// condition holds, followed by its chained effects. It reports whether an
// effect was applied.
func (p *Processor) ApplyNext(s world.Store, job *models.Job, list []models.Effect) (bool, error) {
	for i, e := range list {
		if job.IsApplied(i) {
			continue
		}
		ok, err := ConditionHolds(s, e.Condition)
		if err != nil {
			return false, fmt.Errorf("effect %d (%s) of job %d: %w", i, e.Action, job.ID, err)
		}
		if !ok {
			continue
		}
		if err := p.apply(s, job, e); err != nil {
			return false, err
		}
		job.AppliedEffects = append(job.AppliedEffects, i)
		return true, nil
	}
	return false, nil
}

// Flush applies every remaining effect whose condition holds. It returns the
// number applied.
func (p *Processor) Flush(s world.Store, job *models.Job, list []models.Effect) (int, error) {
	n := 0
	for {
		applied, err := p.ApplyNext(s, job, list)
		if err != nil {
			return n, err
		}
		if !applied {
			return n, nil
		}
		n++
	}
}

func (p *Processor) apply(s world.Store, job *models.Job, e models.Effect) error {
	if h, ok := p.registry.Handler(e.Action); ok {
		if err := h(s, job, e); err != nil {
			return fmt.Errorf("effect %s on job %d: %w", e.Action, job.ID, err)
		}
	} else {
		p.logger.Debug("no handler for effect", zap.String("action", e.Action), zap.Uint32("job", uint32(job.ID)))
	}
	for _, chained := range e.Effects {
		if err := p.apply(s, job, chained); err != nil {
			return err
		}
	}
	return nil
}

// Rollback runs the undo handlers of every applied effect in reverse order and
// clears job.AppliedEffects. It returns the number of effects rolled back.
func (p *Processor) Rollback(s world.Store, job *models.Job, list []models.Effect) (int, error) {
	n := 0
	for i := len(job.AppliedEffects) - 1; i >= 0; i-- {
		idx := job.AppliedEffects[i]
		if idx < 0 || idx >= len(list) {
			continue
		}
		if err := p.undo(s, job, list[idx]); err != nil {
			return n, err
		}
		n++
	}
	job.AppliedEffects = nil
	return n, nil
}

func (p *Processor) undo(s world.Store, job *models.Job, e models.Effect) error {
	for i := len(e.Effects) - 1; i >= 0; i-- {
		if err := p.undo(s, job, e.Effects[i]); err != nil {
			return err
		}
	}
	h, ok := p.registry.Undo(e.Action)
	if !ok {
		return nil
	}
	if err := h(s, job, e); err != nil {
		return fmt.Errorf("undo %s on job %d: %w", e.Action, job.ID, err)
	}
	return nil
}
