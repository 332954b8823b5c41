package models

import (
	"encoding/json"
	"fmt"
)

// JobState is the lifecycle phase of a job.
type JobState string

const (
	// JobPending is a job waiting for an agent, resources or dependencies.
	JobPending JobState = "pending"
	// JobGoingToSite means the agent is walking to the target cell.
	JobGoingToSite JobState = "going_to_site"
	// JobAtSite means the agent reached the target cell.
	JobAtSite JobState = "at_site"
	// JobFetchingResources means the agent is on its way to (or at) the reserved stockpile.
	JobFetchingResources JobState = "fetching_resources"
	// JobWaitingForResources means the stockpile could not supply a pickup yet.
	JobWaitingForResources JobState = "waiting_for_resources"
	// JobDeliveringResources means the agent is carrying a load to the target cell.
	JobDeliveringResources JobState = "delivering_resources"
	// JobInProgress means work is accruing progress.
	JobInProgress JobState = "in_progress"
	// JobComplete is terminal.
	JobComplete JobState = "complete"
	// JobFailed is terminal.
	JobFailed JobState = "failed"
	// JobCancelled is terminal.
	JobCancelled JobState = "cancelled"
	// JobPaused is held by an external decision.
	JobPaused JobState = "paused"
	// JobInterrupted means the assigned agent vanished; the job can be claimed again.
	JobInterrupted JobState = "interrupted"
	// JobBlocked means the job cannot proceed without re-planning.
	JobBlocked JobState = "blocked"
)

// Valid returns true if the state is a known value.
func (s JobState) Valid() bool {
	switch s {
	case JobPending, JobGoingToSite, JobAtSite, JobFetchingResources, JobWaitingForResources,
		JobDeliveringResources, JobInProgress, JobComplete, JobFailed, JobCancelled,
		JobPaused, JobInterrupted, JobBlocked:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state is complete, failed or cancelled.
func (s JobState) IsTerminal() bool {
	return s == JobComplete || s == JobFailed || s == JobCancelled
}

// IsFailure reports whether the state is failed or cancelled.
func (s JobState) IsFailure() bool {
	return s == JobFailed || s == JobCancelled
}

// SpawnCondition is the predicate of a conditional child.
// Exactly one of the field/equals pair, WorldState or EntityState is expected.
type SpawnCondition struct {
	Field       string           `json:"field,omitempty"`
	Equals      json.RawMessage  `json:"equals,omitempty"`
	WorldState  *WorldStateCond  `json:"world_state,omitempty"`
	EntityState *EntityStateCond `json:"entity_state,omitempty"`
}

// ConditionalChild is a job template spawned when SpawnIf holds for the parent.
type ConditionalChild struct {
	SpawnIf SpawnCondition `json:"spawn_if"`
	Job     Job            `json:"job"`
}

// ChildKey identifies a conditional child already spawned by a parent.
type ChildKey struct {
	JobType  string `json:"job_type"`
	Category string `json:"category,omitempty"`
}

// Job is the document of a schedulable unit of work.
type Job struct {
	// Core fields.
	ID                EntityID  `json:"id"`
	JobType           string    `json:"job_type"`
	State             JobState  `json:"state"`
	Priority          int64     `json:"priority"`
	EffectivePriority int64     `json:"effective_priority"`
	AssignmentCount   uint64    `json:"assignment_count"`
	LastAssignedTick  uint64    `json:"last_assigned_tick"`
	CreatedAt         *uint64   `json:"created_at,omitempty"`
	AssignedTo        *EntityID `json:"assigned_to,omitempty"`
	Category          string    `json:"category,omitempty"`
	Parent            *EntityID `json:"parent,omitempty"`

	// Resource fields.
	ResourceRequirements Resources `json:"resource_requirements,omitempty"`
	ReservedResources    Resources `json:"reserved_resources,omitempty"`
	ReservedStockpile    *EntityID `json:"reserved_stockpile,omitempty"`
	DeliveredResources   Resources `json:"delivered_resources,omitempty"`
	ResourceOutputs      Resources `json:"resource_outputs,omitempty"`

	// Movement fields.
	TargetPosition *Cell `json:"target_position,omitempty"`

	// Progress fields.
	Progress         float64 `json:"progress"`
	RequiredProgress float64 `json:"required_progress,omitempty"`
	AppliedEffects   []int   `json:"applied_effects,omitempty"`

	// Graph fields.
	Dependencies               *DependencyExpr    `json:"dependencies,omitempty"`
	ConditionalChildren        []ConditionalChild `json:"conditional_children,omitempty"`
	SpawnedConditionalChildren []ChildKey         `json:"spawned_conditional_children,omitempty"`
	Children                   []Job              `json:"children,omitempty"`
	OnDependencyFailedSpawn    []Job              `json:"on_dependency_failed_spawn,omitempty"`

	// Control flags.
	Cancelled            bool `json:"cancelled,omitempty"`
	CancelledCleanupDone bool `json:"cancelled_cleanup_done,omitempty"`
	Blocked              bool `json:"blocked,omitempty"`
	ShouldFail           bool `json:"should_fail,omitempty"`

	Extra Extra `json:"-"`
}

type jobFields Job

// MarshalJSON encodes the job including its extra bag.
func (j Job) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(jobFields(j), j.Extra)
}

// UnmarshalJSON decodes the job and keeps unknown fields in Extra.
func (j *Job) UnmarshalJSON(data []byte) error {
	var f jobFields
	extra, err := decodeWithExtra(data, &f)
	if err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	*j = Job(f)
	j.Extra = extra
	return nil
}

// NewJob returns a pending job with zero progress.
func NewJob(jobType string, priority int64) Job {
	return Job{
		JobType:           jobType,
		State:             JobPending,
		Priority:          priority,
		EffectivePriority: priority,
	}
}

// Clone returns a deep copy of the job.
func (j Job) Clone() (Job, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return Job{}, fmt.Errorf("clone job %d: %w", j.ID, err)
	}
	var out Job
	if err := json.Unmarshal(data, &out); err != nil {
		return Job{}, fmt.Errorf("clone job %d: %w", j.ID, err)
	}
	return out, nil
}

// CreatedTick returns created_at, defaulting to the job id when unset.
func (j *Job) CreatedTick() uint64 {
	if j.CreatedAt != nil {
		return *j.CreatedAt
	}
	return uint64(j.ID)
}

// IsAssigned reports whether an agent is bound to the job.
func (j *Job) IsAssigned() bool {
	return j.AssignedTo != nil
}

// IsAssignedTo reports whether agent is bound to the job.
func (j *Job) IsAssignedTo(agent EntityID) bool {
	return j.AssignedTo != nil && *j.AssignedTo == agent
}

// NeedsResources reports whether the job has a non-zero requirement line.
func (j *Job) NeedsResources() bool {
	return !j.ResourceRequirements.IsZero()
}

// IsReserved reports whether a reservation is stamped on the job.
func (j *Job) IsReserved() bool {
	return j.ReservedStockpile != nil && len(j.ReservedResources) > 0
}

// RequirementsMet reports whether the delivered resources cover the requirements.
func (j *Job) RequirementsMet() bool {
	return j.DeliveredResources.Covers(j.ResourceRequirements)
}

// Remaining returns the requirement lines not yet delivered.
func (j *Job) Remaining() Resources {
	var out Resources
	for _, kind := range j.ResourceRequirements.Kinds() {
		if left := j.ResourceRequirements.Amount(kind) - j.DeliveredResources.Amount(kind); left > 0 {
			out = append(out, ResourceAmount{Kind: kind, Amount: left})
		}
	}
	return out
}

// ClearReservation removes the reservation stamp.
func (j *Job) ClearReservation() {
	j.ReservedResources = nil
	j.ReservedStockpile = nil
}

// Unassign clears the agent binding.
func (j *Job) Unassign() {
	j.AssignedTo = nil
}

// HasSpawned reports whether a conditional child with key was already spawned.
func (j *Job) HasSpawned(key ChildKey) bool {
	for _, k := range j.SpawnedConditionalChildren {
		if k == key {
			return true
		}
	}
	return false
}

// IsApplied reports whether the effect at index was applied.
func (j *Job) IsApplied(index int) bool {
	for _, i := range j.AppliedEffects {
		if i == index {
			return true
		}
	}
	return false
}
