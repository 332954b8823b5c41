package models

import "fmt"

// AgentState represents whether an agent holds a job.
type AgentState string

const (
	// AgentIdle indicates the agent has no current job.
	AgentIdle AgentState = "idle"
	// AgentWorking indicates the agent is bound to its current job.
	AgentWorking AgentState = "working"
)

// Valid returns true if the state is a known value.
func (s AgentState) Valid() bool {
	switch s {
	case AgentIdle, AgentWorking:
		return true
	default:
		return false
	}
}

// DefaultStamina is assumed when an agent carries no stamina value.
const DefaultStamina = 100.0

// Inventory bounds what an agent can carry in one trip.
// Nil maxima are unbounded.
type Inventory struct {
	MaxWeight *float64 `json:"max_weight,omitempty"`
	MaxVolume *float64 `json:"max_volume,omitempty"`
	MaxSlots  *int     `json:"max_slots,omitempty"`
	Weight    float64  `json:"weight,omitempty"`
	Volume    float64  `json:"volume,omitempty"`
	Slots     int      `json:"slots,omitempty"`
}

// Agent is an actor that can hold exactly one job at a time.
type Agent struct {
	ID               EntityID           `json:"entity_id"`
	State            AgentState         `json:"state"`
	CurrentJob       *EntityID          `json:"current_job,omitempty"`
	JobQueue         []EntityID         `json:"job_queue,omitempty"`
	Skills           map[string]float64 `json:"skills,omitempty"`
	Preferences      map[string]float64 `json:"preferences,omitempty"`
	Specializations  []string           `json:"specializations,omitempty"`
	CarriedResources Resources          `json:"carried_resources,omitempty"`
	CarryingFor      *EntityID          `json:"carrying_for,omitempty"`
	MovePath         []Cell             `json:"move_path,omitempty"`
	Stamina          *float64           `json:"stamina,omitempty"`
	Inventory        *Inventory         `json:"inventory,omitempty"`

	Extra Extra `json:"-"`
}

type agentFields Agent

// MarshalJSON encodes the agent including its extra bag.
func (a Agent) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(agentFields(a), a.Extra)
}

// UnmarshalJSON decodes the agent and keeps unknown fields in Extra.
func (a *Agent) UnmarshalJSON(data []byte) error {
	var f agentFields
	extra, err := decodeWithExtra(data, &f)
	if err != nil {
		return fmt.Errorf("decode agent: %w", err)
	}
	*a = Agent(f)
	a.Extra = extra
	return nil
}

// NewAgent returns an idle agent.
func NewAgent(id EntityID) Agent {
	return Agent{ID: id, State: AgentIdle}
}

// StaminaOrDefault returns the stamina, or DefaultStamina when unset.
func (a *Agent) StaminaOrDefault() float64 {
	if a.Stamina == nil {
		return DefaultStamina
	}
	return *a.Stamina
}

// Skill returns the skill for jobType and whether it is set.
func (a *Agent) Skill(jobType string) (float64, bool) {
	v, ok := a.Skills[jobType]
	return v, ok
}

// HasSpecialization reports whether category is one of the agent's specializations.
func (a *Agent) HasSpecialization(category string) bool {
	if category == "" {
		return false
	}
	for _, s := range a.Specializations {
		if s == category {
			return true
		}
	}
	return false
}

// IsOn reports whether the agent's current job is id.
func (a *Agent) IsOn(id EntityID) bool {
	return a.CurrentJob != nil && *a.CurrentJob == id
}

// Assign binds the agent to job id.
func (a *Agent) Assign(id EntityID) {
	a.CurrentJob = IDPtr(id)
	a.State = AgentWorking
}

// Release returns the agent to idle.
func (a *Agent) Release() {
	a.CurrentJob = nil
	a.State = AgentIdle
}

// CarriedFor returns the carried load picked up for job id. A load without
// an owning job belongs to the current job.
func (a *Agent) CarriedFor(id EntityID) Resources {
	if a.CarryingFor != nil {
		if *a.CarryingFor == id {
			return a.CarriedResources
		}
		return nil
	}
	if a.IsOn(id) {
		return a.CarriedResources
	}
	return nil
}

// Enqueue appends id to the job queue unless it is already queued.
func (a *Agent) Enqueue(id EntityID) bool {
	for _, q := range a.JobQueue {
		if q == id {
			return false
		}
	}
	a.JobQueue = append(a.JobQueue, id)
	return true
}

// PushFront places id at the head of the job queue, removing any later copy.
func (a *Agent) PushFront(id EntityID) {
	queue := make([]EntityID, 0, len(a.JobQueue)+1)
	queue = append(queue, id)
	for _, q := range a.JobQueue {
		if q != id {
			queue = append(queue, q)
		}
	}
	a.JobQueue = queue
}
