// Package phase advances a single job through its lifecycle each tick.
package phase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/deps"
	"github.com/ShayCichocki/jobforge/internal/effects"
	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/jobtypes"
	"github.com/ShayCichocki/jobforge/internal/reservation"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Config holds the progression tunables.
type Config struct {
	// BaseRate is the progress per tick before skill and stamina scaling.
	BaseRate float64
	// MinIncrement is the floor of a scaled progress step.
	MinIncrement float64
	// RequiredProgress is used when neither the job nor its type sets one.
	RequiredProgress float64
}

// DefaultConfig returns base rate 1.0, min increment 0.1 and required progress 3.0.
func DefaultConfig() Config {
	return Config{BaseRate: 1.0, MinIncrement: 0.1, RequiredProgress: 3.0}
}

// Option configures a Machine.
type Option func(*Machine)

// WithConfig sets the progression tunables.
func WithConfig(c Config) Option {
	return func(m *Machine) { m.cfg = c }
}

// WithPathfinder sets the pathfinding collaborator.
func WithPathfinder(p world.Pathfinder) Option {
	return func(m *Machine) {
		if p != nil {
			m.pather = p
		}
	}
}

// WithJobTypes sets the job type registry used for custom handlers,
// effect lists and default durations.
func WithJobTypes(r *jobtypes.Registry) Option {
	return func(m *Machine) {
		if r != nil {
			m.jobTypes = r
		}
	}
}

// WithEffects sets the effect processor.
func WithEffects(p *effects.Processor) Option {
	return func(m *Machine) {
		if p != nil {
			m.effects = p
		}
	}
}

// WithBus sets the bus job_progressed and job_blocked are sent on.
func WithBus(b *events.Bus) Option {
	return func(m *Machine) { m.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// Machine is the job state machine.
type Machine struct {
	cfg      Config
	pather   world.Pathfinder
	jobTypes *jobtypes.Registry
	effects  *effects.Processor
	bus      *events.Bus
	logger   *zap.Logger
}

// New creates a Machine. Without a pathfinder every target is one step away.
func New(opts ...Option) *Machine {
	m := &Machine{
		cfg:      DefaultConfig(),
		pather:   directPather{},
		jobTypes: jobtypes.NewRegistry(),
		effects:  effects.NewProcessor(nil),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Effects returns the effect list configured for a job's type.
func (m *Machine) Effects(job *models.Job) []models.Effect {
	return m.jobTypes.Effects(job.JobType)
}

// Process advances job by at most one phase. Terminal jobs are left alone
// except for a cancellation whose cleanup has not run. Structural errors
// (malformed dependencies) and custom handler errors are returned.
func (m *Machine) Process(s world.Store, job *models.Job, tick uint64) error {
	cancelling := (job.Cancelled || job.State == models.JobCancelled) && !job.CancelledCleanupDone
	if job.State.IsTerminal() && !cancelling {
		return nil
	}

	if job.AssignedTo != nil {
		if _, ok := s.Agent(*job.AssignedTo); !ok {
			return m.interrupt(s, job)
		}
	}

	if cancelling {
		return m.cancel(s, job)
	}

	failState, failed, err := deps.FailureState(s, job)
	if err != nil {
		return err
	}
	if failed {
		job.State = failState
		if failState == models.JobFailed && len(job.OnDependencyFailedSpawn) > 0 {
			job.Children = append(job.Children, job.OnDependencyFailedSpawn...)
		}
		return nil
	}

	ok, err := deps.Satisfied(s, job)
	if err != nil {
		return err
	}
	if !ok {
		switch job.State {
		case models.JobPaused, models.JobBlocked, models.JobInterrupted:
		default:
			job.State = models.JobPending
		}
		return nil
	}

	if len(job.Children) > 0 {
		done, err := m.processChildren(s, job, tick)
		if err != nil {
			return err
		}
		if done {
			job.State = models.JobComplete
			return nil
		}
	}

	if job.ShouldFail {
		job.State = models.JobFailed
		return nil
	}

	return m.dispatch(s, job, tick)
}

func (m *Machine) dispatch(s world.Store, job *models.Job, tick uint64) error {
	switch job.State {
	case models.JobPending:
		m.pending(s, job, tick)
	case models.JobGoingToSite:
		m.goingToSite(s, job, tick)
	case models.JobAtSite:
		job.State = models.JobInProgress
	case models.JobFetchingResources, models.JobWaitingForResources:
		m.fetching(s, job, tick)
	case models.JobDeliveringResources:
		m.delivering(s, job, tick)
	case models.JobInProgress:
		return m.inProgress(s, job, tick)
	case models.JobPaused, models.JobInterrupted, models.JobBlocked:
	default:
		return fmt.Errorf("job %d: unknown state %q", job.ID, job.State)
	}
	return nil
}

// processChildren advances embedded children and reports whether all of them
// are complete. Children are worked by the parent's agent.
func (m *Machine) processChildren(s world.Store, job *models.Job, tick uint64) (bool, error) {
	all := true
	for i := range job.Children {
		child := &job.Children[i]
		if !child.State.IsTerminal() {
			child.AssignedTo = job.AssignedTo
		}
		if err := m.Process(s, child, tick); err != nil {
			return false, fmt.Errorf("child %d of job %d: %w", i, job.ID, err)
		}
		if child.State != models.JobComplete {
			all = false
		}
	}
	return all, nil
}

// interrupt handles a vanished agent: the job is interrupted, its
// reservation released and its applied effects rolled back. The load the
// agent carried is gone with it.
func (m *Machine) interrupt(s world.Store, job *models.Job) error {
	job.State = models.JobInterrupted
	job.Unassign()
	reservation.Release(job)
	if _, err := m.effects.Rollback(s, job, m.Effects(job)); err != nil {
		return err
	}
	m.logger.Info("job interrupted, agent missing", zap.Uint32("job", uint32(job.ID)))
	return nil
}

func (m *Machine) sendJob(topic events.Topic, job *models.Job, tick uint64) {
	if m.bus != nil {
		m.bus.Send(topic, tick, events.JobPayload(job))
	}
}

// agentOf returns the live agent assigned to job.
func agentOf(s world.AgentStore, job *models.Job) (*models.Agent, bool) {
	if job.AssignedTo == nil {
		return nil, false
	}
	return s.Agent(*job.AssignedTo)
}
