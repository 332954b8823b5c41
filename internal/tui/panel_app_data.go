package tui

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/jobforge/internal/orchestrator"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// JobRow is the display copy of one job.
type JobRow struct {
	ID                models.EntityID
	JobType           string
	State             models.JobState
	Priority          int64
	EffectivePriority int64
	Progress          float64
	RequiredProgress  float64
	AssignedTo        *models.EntityID
	Cancelled         bool
}

// AgentRow is the display copy of one agent.
type AgentRow struct {
	ID         models.EntityID
	State      models.AgentState
	CurrentJob *models.EntityID
	Queue      int
	Carrying   string
}

// Counts tallies jobs by coarse status.
type Counts struct {
	Active    int
	Complete  int
	Failed    int
	Cancelled int
}

// Frame is an immutable view of the world after one tick. Frames are built
// on the runner goroutine so the UI never touches the live store.
type Frame struct {
	Tick       uint64
	Policy     string
	Candidates int
	Jobs       []JobRow
	Agents     []AgentRow
	Counts     Counts
	Report     orchestrator.TickReport
}

// BuildFrame copies the jobs and agents of s into a Frame.
func BuildFrame(s world.Store, policy string, report orchestrator.TickReport) Frame {
	f := Frame{
		Tick:       report.Tick,
		Policy:     policy,
		Candidates: report.Candidates,
		Report:     report,
	}

	for _, id := range s.JobIDs() {
		j, ok := s.Job(id)
		if !ok {
			continue
		}
		row := JobRow{
			ID:                j.ID,
			JobType:           j.JobType,
			State:             j.State,
			Priority:          j.Priority,
			EffectivePriority: j.EffectivePriority,
			Progress:          j.Progress,
			RequiredProgress:  j.RequiredProgress,
			Cancelled:         j.Cancelled,
		}
		if j.AssignedTo != nil {
			a := *j.AssignedTo
			row.AssignedTo = &a
		}
		f.Jobs = append(f.Jobs, row)

		switch {
		case j.State == models.JobComplete:
			f.Counts.Complete++
		case j.State == models.JobFailed:
			f.Counts.Failed++
		case j.State == models.JobCancelled || j.Cancelled:
			f.Counts.Cancelled++
		default:
			f.Counts.Active++
		}
	}

	for _, id := range s.AgentIDs() {
		a, ok := s.Agent(id)
		if !ok {
			continue
		}
		row := AgentRow{
			ID:       a.ID,
			State:    a.State,
			Queue:    len(a.JobQueue),
			Carrying: formatResources(a.CarriedResources),
		}
		if a.CurrentJob != nil {
			cj := *a.CurrentJob
			row.CurrentJob = &cj
		}
		f.Agents = append(f.Agents, row)
	}
	return f
}

// formatResources renders resources as "kind:amount" pairs in list order.
func formatResources(r models.Resources) string {
	if r.IsZero() {
		return "-"
	}
	parts := make([]string, 0, len(r))
	for _, kind := range r.Kinds() {
		parts = append(parts, fmt.Sprintf("%s:%d", kind, r.Amount(kind)))
	}
	return strings.Join(parts, " ")
}

func formatEntity(id *models.EntityID) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}
