package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/assign"
	"github.com/ShayCichocki/jobforge/internal/board"
	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/graph"
	"github.com/ShayCichocki/jobforge/internal/orchestrator/policy"
	"github.com/ShayCichocki/jobforge/internal/phase"
	"github.com/ShayCichocki/jobforge/internal/reservation"
	"github.com/ShayCichocki/jobforge/internal/spawn"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Orchestrator coordinates the engine components over a shared store.
// It holds exclusive logical ownership of the store for the duration of a tick.
type Orchestrator struct {
	store   world.Store
	sched   *Context
	policy  *policy.Config
	board   *board.Board
	reserve *reservation.Manager
	assign  *assign.Engine
	machine *phase.Machine
	logger  *DebugLogger
	zap     *zap.Logger
}

// TickReport summarises what one tick did.
type TickReport struct {
	Tick       uint64
	Shortages  []string
	Reserved   []models.EntityID
	Waiting    []models.EntityID
	Candidates int
	Assignment assign.Summary
	Processed  int
	Completed  []models.EntityID
	Failed     []models.EntityID
	Cancelled  []models.EntityID
	Spawned    []models.EntityID
	// Reconciled counts agents released because their job vanished or ended.
	Reconciled int
}

// New creates an Orchestrator over store. A nil sched gets NewContext().
func New(store world.Store, sched *Context, opts ...Option) (*Orchestrator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if sched == nil {
		sched = NewContext()
	}
	if o.policyConfig == nil {
		o.policyConfig = policy.Default()
	}
	if err := o.policyConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	setPackageLogger(o.logger)

	sp, err := board.PolicyByName(o.policyConfig.Scheduling.Policy)
	if err != nil {
		return nil, err
	}
	zl := o.logger.Zap()

	phaseOpts := []phase.Option{
		phase.WithConfig(o.policyConfig.PhaseConfig()),
		phase.WithJobTypes(sched.JobTypes),
		phase.WithEffects(sched.Effects),
		phase.WithBus(sched.Bus),
		phase.WithLogger(zl.Named("phase")),
	}
	if o.pathfinder != nil {
		phaseOpts = append(phaseOpts, phase.WithPathfinder(o.pathfinder))
	}

	return &Orchestrator{
		store:   store,
		sched:   sched,
		policy:  o.policyConfig,
		board:   board.New(board.WithPolicy(sp), board.WithLogger(zl.Named("board"))),
		reserve: reservation.NewManager(reservation.WithLogger(zl.Named("reservation"))),
		assign: assign.New(
			assign.WithLogger(zl.Named("assign")),
			assign.WithSpecializationBonus(o.policyConfig.Assignment.SpecializationBonus),
		),
		machine: phase.New(phaseOpts...),
		logger:  o.logger,
		zap:     zl,
	}, nil
}

// Board returns the job board.
func (o *Orchestrator) Board() *board.Board {
	return o.board
}

// Context returns the scheduler context.
func (o *Orchestrator) Context() *Context {
	return o.sched
}

// Store returns the store the orchestrator runs against.
func (o *Orchestrator) Store() world.Store {
	return o.store
}

// Machine returns the job state machine.
func (o *Orchestrator) Machine() *phase.Machine {
	return o.machine
}

// Tick runs one full pass: aging and shortage reaction, reservation, board
// refresh, assignment, then every job in dependency order through the state
// machine. Transitions into complete, failed and cancelled emit their event,
// flush or roll back effects and spawn conditional children. Finally agents
// whose job vanished or ended are released.
//
// A malformed dependency expression, a dependency cycle or a failing custom
// handler aborts the tick and is returned.
func (o *Orchestrator) Tick(ctx context.Context) (TickReport, error) {
	if err := ctx.Err(); err != nil {
		return TickReport{}, err
	}
	tick := o.sched.advance()
	rep := TickReport{Tick: tick}
	bus := o.sched.Bus

	shortages := map[string]bool{}
	for _, ev := range bus.Take(events.TopicResourceShortage) {
		if ev.Payload.Kind != "" && !shortages[ev.Payload.Kind] {
			shortages[ev.Payload.Kind] = true
			rep.Shortages = append(rep.Shortages, ev.Payload.Kind)
		}
	}
	sort.Strings(rep.Shortages)
	o.policy.AgingRule().Apply(o.store, tick, shortages)
	if n := assign.ReactToShortages(o.store, rep.Shortages); n > 0 {
		o.logger.Log("[tick %d] queued producers %d times for shortages %v", tick, n, rep.Shortages)
	}

	res, err := o.reserve.Reserve(o.store)
	if err != nil {
		return rep, fmt.Errorf("tick %d: %w", tick, err)
	}
	rep.Reserved, rep.Waiting = res.Reserved, res.Waiting

	if err := o.board.Update(o.store); err != nil {
		return rep, fmt.Errorf("tick %d: %w", tick, err)
	}
	rep.Candidates = o.board.Len()

	sum, err := o.assign.Assign(o.store, o.board, bus, tick)
	if err != nil {
		return rep, fmt.Errorf("tick %d: %w", tick, err)
	}
	rep.Assignment = sum

	order, err := o.processOrder()
	if err != nil {
		return rep, fmt.Errorf("tick %d: %w", tick, err)
	}
	for _, id := range order {
		job, ok := o.store.Job(id)
		if !ok {
			continue
		}
		if err := o.process(job, tick, &rep); err != nil {
			return rep, fmt.Errorf("tick %d: job %d: %w", tick, id, err)
		}
		rep.Processed++
	}

	rep.Reconciled = o.reconcileAgents()

	o.logger.Log("[tick %d] reserved=%d waiting=%d candidates=%d assigned=%d processed=%d completed=%d",
		tick, len(rep.Reserved), len(rep.Waiting), rep.Candidates, len(rep.Assignment.Assigned),
		rep.Processed, len(rep.Completed))
	return rep, nil
}

// processOrder returns job ids so that referenced jobs come first.
func (o *Orchestrator) processOrder() ([]models.EntityID, error) {
	ids := o.store.JobIDs()
	jobs := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := o.store.Job(id); ok {
			jobs = append(jobs, job)
		}
	}
	g := graph.New()
	g.SetDebugLog(debugLog)
	if err := g.Build(jobs); err != nil {
		return nil, err
	}
	return g.TopologicalSort()
}

// process runs one job through the state machine and handles the
// transition it made.
func (o *Orchestrator) process(job *models.Job, tick uint64, rep *TickReport) error {
	before := job.State
	cleanupDone := job.CancelledCleanupDone

	if err := o.machine.Process(o.store, job, tick); err != nil {
		return err
	}
	// A dependency cancellation puts the job straight into cancelled; run
	// its cleanup in the same tick.
	if job.State == models.JobCancelled && !job.CancelledCleanupDone {
		if err := o.machine.Process(o.store, job, tick); err != nil {
			return err
		}
	}

	switch {
	case job.State == models.JobComplete && before != models.JobComplete:
		if _, err := o.sched.Effects.Flush(o.store, job, o.machine.Effects(job)); err != nil {
			return err
		}
		o.send(events.TopicJobCompleted, job, tick)
		rep.Completed = append(rep.Completed, job.ID)
	case job.State == models.JobFailed && before != models.JobFailed:
		if _, err := o.sched.Effects.Rollback(o.store, job, o.machine.Effects(job)); err != nil {
			return err
		}
		o.send(events.TopicJobFailed, job, tick)
		rep.Failed = append(rep.Failed, job.ID)
	case job.State == models.JobCancelled && job.CancelledCleanupDone && !cleanupDone:
		o.send(events.TopicJobCancelled, job, tick)
		rep.Cancelled = append(rep.Cancelled, job.ID)
	default:
		return nil
	}

	spawned, err := spawn.Run(o.store, job, tick)
	if err != nil {
		return err
	}
	rep.Spawned = append(rep.Spawned, spawned...)
	if len(spawned) > 0 {
		o.zap.Info("spawned conditional children",
			zap.Uint32("job", uint32(job.ID)),
			zap.Int("count", len(spawned)))
	}

	o.releaseAgent(job)
	return nil
}

// releaseAgent frees the agent of a job that reached a terminal state.
func (o *Orchestrator) releaseAgent(job *models.Job) {
	if job.AssignedTo != nil {
		if agent, ok := o.store.Agent(*job.AssignedTo); ok && agent.IsOn(job.ID) {
			agent.Release()
			agent.MovePath = nil
		}
	}
	job.Unassign()
}

// reconcileAgents releases agents whose current job no longer exists or has
// ended. It returns the number released.
func (o *Orchestrator) reconcileAgents() int {
	n := 0
	for _, aid := range o.store.AgentIDs() {
		agent, ok := o.store.Agent(aid)
		if !ok || agent.CurrentJob == nil {
			continue
		}
		job, exists := o.store.Job(*agent.CurrentJob)
		if exists && !job.State.IsTerminal() {
			continue
		}
		o.logger.Log("[reconcile] agent %d released from job %d", aid, *agent.CurrentJob)
		phase.DropCarried(o.store, agent)
		agent.Release()
		agent.MovePath = nil
		n++
	}
	return n
}

func (o *Orchestrator) send(topic events.Topic, job *models.Job, tick uint64) {
	o.sched.Bus.Send(topic, tick, events.JobPayload(job))
}
