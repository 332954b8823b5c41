// Package board maintains the ordered list of claimable jobs.
package board

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/deps"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// ErrNoJobsAvailable is returned by Claim when no candidate is eligible.
var ErrNoJobsAvailable = errors.New("no jobs available")

// JobMetadata is a board row as shown to observers.
type JobMetadata struct {
	ID       models.EntityID `json:"id"`
	Priority int64           `json:"priority"`
	State    models.JobState `json:"state"`
}

// Option configures a Board.
type Option func(*Board)

// WithPolicy sets the initial scheduling policy.
func WithPolicy(p SchedulingPolicy) Option {
	return func(b *Board) {
		if p != nil {
			b.policy = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

// Board holds the current candidates in policy order.
type Board struct {
	policy SchedulingPolicy
	jobs   []models.EntityID
	logger *zap.Logger
}

// New creates a board using the priority policy unless configured otherwise.
func New(opts ...Option) *Board {
	b := &Board{policy: PriorityPolicy{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Policy returns the active scheduling policy.
func (b *Board) Policy() SchedulingPolicy {
	return b.policy
}

// SetPolicy replaces the scheduling policy. It takes effect on the next Update.
func (b *Board) SetPolicy(p SchedulingPolicy) {
	if p != nil {
		b.policy = p
	}
}

// SetPolicyByName replaces the scheduling policy by name.
func (b *Board) SetPolicyByName(name string) error {
	p, err := PolicyByName(name)
	if err != nil {
		return err
	}
	b.policy = p
	return nil
}

// IsCandidate reports whether a job may be claimed: unassigned, claimable
// state, not blocked or cancelled, resources either not needed or reserved,
// and dependencies satisfied.
func IsCandidate(s deps.Store, job *models.Job) (bool, error) {
	if job.IsAssigned() || job.Blocked || job.Cancelled {
		return false, nil
	}
	switch job.State {
	case models.JobPending, models.JobInterrupted, models.JobFetchingResources:
	default:
		return false, nil
	}
	if job.NeedsResources() && !job.IsReserved() {
		return false, nil
	}
	return deps.Satisfied(s, job)
}

// Update rebuilds the candidate list from the store.
func (b *Board) Update(s world.Store) error {
	var entries []Entry
	for _, id := range s.JobIDs() {
		job, _ := s.Job(id)
		ok, err := IsCandidate(s, job)
		if err != nil {
			return fmt.Errorf("board update: %w", err)
		}
		if ok {
			entries = append(entries, entryOf(job))
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return b.policy.Less(entries[i], entries[j]) })

	b.jobs = b.jobs[:0]
	for _, e := range entries {
		b.jobs = append(b.jobs, e.ID)
	}
	b.logger.Debug("board updated", zap.Int("candidates", len(b.jobs)), zap.String("policy", b.policy.Name()))
	return nil
}

// Candidates returns the candidate ids in policy order.
func (b *Board) Candidates() []models.EntityID {
	return append([]models.EntityID(nil), b.jobs...)
}

// Len returns the number of candidates.
func (b *Board) Len() int {
	return len(b.jobs)
}

// Contains reports whether id is on the board.
func (b *Board) Contains(id models.EntityID) bool {
	for _, j := range b.jobs {
		if j == id {
			return true
		}
	}
	return false
}

// Remove takes id off the board.
func (b *Board) Remove(id models.EntityID) {
	for i, j := range b.jobs {
		if j == id {
			b.jobs = append(b.jobs[:i], b.jobs[i+1:]...)
			return
		}
	}
}

// Claim binds the first still-eligible candidate to agent and removes it from
// the board. Returns ErrNoJobsAvailable when nothing can be claimed.
func (b *Board) Claim(s world.Store, agent models.EntityID, tick uint64) (models.EntityID, error) {
	a, ok := s.Agent(agent)
	if !ok {
		return 0, fmt.Errorf("claim: agent %d not found", agent)
	}
	for _, id := range b.Candidates() {
		job, ok := s.Job(id)
		if !ok {
			b.Remove(id)
			continue
		}
		eligible, err := IsCandidate(s, job)
		if err != nil {
			return 0, err
		}
		if !eligible {
			b.Remove(id)
			continue
		}
		Bind(a, job, tick)
		b.Remove(id)
		return id, nil
	}
	return 0, ErrNoJobsAvailable
}

// Bind stamps an assignment on job and puts the agent to work on it.
func Bind(agent *models.Agent, job *models.Job, tick uint64) {
	job.AssignedTo = models.IDPtr(agent.ID)
	agent.Assign(job.ID)
	if job.State == models.JobInterrupted {
		job.State = models.JobPending
	}
	job.AssignmentCount++
	job.LastAssignedTick = tick
}

// Metadata returns the candidates with their priority and state, in board order.
func (b *Board) Metadata(s world.JobStore) []JobMetadata {
	out := make([]JobMetadata, 0, len(b.jobs))
	for _, id := range b.jobs {
		if job, ok := s.Job(id); ok {
			out = append(out, JobMetadata{ID: id, Priority: job.Priority, State: job.State})
		}
	}
	return out
}

// Priority returns the base priority of a job.
func Priority(s world.JobStore, id models.EntityID) (int64, bool) {
	job, ok := s.Job(id)
	if !ok {
		return 0, false
	}
	return job.Priority, true
}

// SetPriority changes the base priority of a job. Effective priority follows
// on the next aging pass.
func SetPriority(s world.JobStore, id models.EntityID, priority int64) bool {
	job, ok := s.Job(id)
	if !ok {
		return false
	}
	job.Priority = priority
	job.EffectivePriority = priority
	return true
}
