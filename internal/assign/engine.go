// Package assign binds agents to board candidates and preempts low priority
// work when something more important becomes claimable.
package assign

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/board"
	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/phase"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSpecializationBonus overrides DefaultSpecializationBonus.
func WithSpecializationBonus(bonus float64) Option {
	return func(e *Engine) {
		e.specializationBonus = bonus
	}
}

// Engine runs the per-tick assignment pass.
type Engine struct {
	specializationBonus float64
	logger              *zap.Logger
}

// Summary counts what one assignment pass did.
type Summary struct {
	Abandoned []models.EntityID
	Preempted []models.EntityID
	Assigned  []models.EntityID
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		specializationBonus: DefaultSpecializationBonus,
		logger:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assign processes every agent in ascending id order. Each agent first
// abandons a blocked job, then a working agent may be preempted by a strictly
// higher priority candidate, then an idle agent drains its queue or takes the
// best candidate on the board. Assigned jobs are removed from b and a
// job_assigned event is sent on bus.
func (e *Engine) Assign(s world.Store, b *board.Board, bus *events.Bus, tick uint64) (Summary, error) {
	var sum Summary
	for _, aid := range s.AgentIDs() {
		agent, ok := s.Agent(aid)
		if !ok {
			continue
		}

		if abandoned := e.abandonBlocked(s, agent); abandoned != nil {
			sum.Abandoned = append(sum.Abandoned, *abandoned)
		}

		if agent.State == models.AgentWorking && agent.CurrentJob != nil {
			preempted, err := e.preempt(s, b, bus, agent, tick)
			if err != nil {
				return sum, err
			}
			if preempted != nil {
				sum.Preempted = append(sum.Preempted, *preempted)
				sum.Assigned = append(sum.Assigned, *agent.CurrentJob)
			}
			continue
		}

		if agent.State == models.AgentWorking {
			// Working without a job is an inconsistent document; treat as idle.
			agent.Release()
		}

		id, err := e.assignIdle(s, b, bus, agent, tick)
		if err != nil {
			return sum, err
		}
		if id != nil {
			sum.Assigned = append(sum.Assigned, *id)
		}
	}
	return sum, nil
}

// abandonBlocked unassigns the agent's current job when it is blocked. The
// agent drops what it carried for that job.
func (e *Engine) abandonBlocked(s world.Store, agent *models.Agent) *models.EntityID {
	if agent.CurrentJob == nil {
		return nil
	}
	id := *agent.CurrentJob
	job, ok := s.Job(id)
	if !ok {
		return nil
	}
	if !job.Blocked && job.State != models.JobBlocked {
		return nil
	}
	if job.IsAssignedTo(agent.ID) {
		job.Unassign()
	}
	if !job.State.IsTerminal() && job.State != models.JobBlocked {
		job.State = models.JobPending
	}
	e.drop(s, agent, id)
	agent.MovePath = nil
	agent.Release()
	e.logger.Debug("agent abandoned blocked job",
		zap.Uint32("agent", uint32(agent.ID)), zap.Uint32("job", uint32(id)))
	return &id
}

// preempt swaps the agent onto a strictly higher priority board candidate.
// The load carried for the preempted job is dropped where the agent stands;
// the preempted job reserves what it still lacks on its next pass.
func (e *Engine) preempt(s world.Store, b *board.Board, bus *events.Bus, agent *models.Agent, tick uint64) (*models.EntityID, error) {
	currentID := *agent.CurrentJob
	current, ok := s.Job(currentID)
	if !ok {
		return nil, nil
	}

	var best *scored
	for _, id := range b.Candidates() {
		job, ok := s.Job(id)
		if !ok || job.Priority <= current.Priority {
			continue
		}
		c := scored{job: job, utility: Utility(s, agent, job, e.specializationBonus)}
		if best == nil || better(c, *best) {
			best = &c
		}
	}
	if best == nil {
		return nil, nil
	}

	if current.IsAssignedTo(agent.ID) {
		current.Unassign()
	}
	if !current.State.IsTerminal() {
		current.State = models.JobPending
	}
	e.drop(s, agent, currentID)
	agent.MovePath = nil
	agent.Release()
	agent.PushFront(currentID)

	e.bind(b, bus, agent, best.job, tick)
	e.logger.Info("agent preempted",
		zap.Uint32("agent", uint32(agent.ID)),
		zap.Uint32("from", uint32(currentID)),
		zap.Uint32("to", uint32(best.job.ID)))
	return &currentID, nil
}

func (e *Engine) drop(s world.Store, agent *models.Agent, job models.EntityID) {
	if n := phase.DropCarried(s, agent); n > 0 {
		e.logger.Info("agent dropped carried resources",
			zap.Uint32("agent", uint32(agent.ID)),
			zap.Uint32("job", uint32(job)),
			zap.Int("items", n))
	}
}

// assignIdle gives an idle agent its first still claimable queued job or the
// best board candidate.
func (e *Engine) assignIdle(s world.Store, b *board.Board, bus *events.Bus, agent *models.Agent, tick uint64) (*models.EntityID, error) {
	for len(agent.JobQueue) > 0 {
		id := agent.JobQueue[0]
		agent.JobQueue = agent.JobQueue[1:]
		job, ok := s.Job(id)
		if !ok || job.IsAssigned() || job.Blocked || job.Cancelled || job.State != models.JobPending {
			continue
		}
		e.bind(b, bus, agent, job, tick)
		return &id, nil
	}

	var best *scored
	for _, id := range b.Candidates() {
		job, ok := s.Job(id)
		if !ok {
			continue
		}
		eligible, err := board.IsCandidate(s, job)
		if err != nil {
			return nil, fmt.Errorf("assign agent %d: %w", agent.ID, err)
		}
		if !eligible {
			b.Remove(id)
			continue
		}
		c := scored{job: job, utility: Utility(s, agent, job, e.specializationBonus)}
		if best == nil || better(c, *best) {
			best = &c
		}
	}
	if best == nil {
		return nil, nil
	}
	e.bind(b, bus, agent, best.job, tick)
	id := best.job.ID
	return &id, nil
}

func (e *Engine) bind(b *board.Board, bus *events.Bus, agent *models.Agent, job *models.Job, tick uint64) {
	board.Bind(agent, job, tick)
	b.Remove(job.ID)
	if bus != nil {
		bus.Send(events.TopicJobAssigned, tick, events.JobPayload(job))
	}
	e.logger.Debug("job assigned",
		zap.Uint32("agent", uint32(agent.ID)), zap.Uint32("job", uint32(job.ID)))
}

// ReactToShortages queues every production job whose outputs include a short
// kind on every agent. It returns the number of queue insertions.
func ReactToShortages(s world.Store, kinds []string) int {
	if len(kinds) == 0 {
		return 0
	}
	short := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		short[k] = true
	}

	var producers []models.EntityID
	for _, id := range s.JobIDs() {
		job, _ := s.Job(id)
		if job.State.IsTerminal() || job.Cancelled {
			continue
		}
		for _, out := range job.ResourceOutputs {
			if short[out.Kind] && out.Amount > 0 {
				producers = append(producers, id)
				break
			}
		}
	}

	added := 0
	for _, aid := range s.AgentIDs() {
		agent, _ := s.Agent(aid)
		for _, id := range producers {
			if agent.IsOn(id) {
				continue
			}
			if agent.Enqueue(id) {
				added++
			}
		}
	}
	return added
}
