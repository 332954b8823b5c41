package phase

import (
	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// directPather reaches any cell in one step.
type directPather struct{}

func (directPather) FindPath(from, to models.Cell) (world.Path, bool) {
	if from == to {
		return world.Path{}, true
	}
	return world.Path{Cells: []models.Cell{to}, TotalCost: 1}, true
}

// at reports whether the agent stands on target. An agent without a position
// is treated as being everywhere.
func at(s world.PositionStore, agent *models.Agent, target models.Cell) bool {
	cell, ok := world.CellOfEntity(s, agent.ID)
	return !ok || cell == target
}

// routeTo makes sure the agent has a path toward target. It returns false when
// no path exists.
func (m *Machine) routeTo(s world.PositionStore, agent *models.Agent, target models.Cell) bool {
	from, ok := world.CellOfEntity(s, agent.ID)
	if !ok {
		return true
	}
	path, ok := m.pather.FindPath(from, target)
	if !ok {
		return false
	}
	if len(agent.MovePath) == 0 {
		agent.MovePath = append([]models.Cell(nil), path.Cells...)
	}
	return true
}

// block puts the job in the blocked state after a pathfinding failure and
// frees its agent, dropping whatever it carried.
func (m *Machine) block(s world.Store, job *models.Job, tick uint64) {
	job.State = models.JobBlocked
	if agent, ok := agentOf(s, job); ok {
		DropCarried(s, agent)
		if agent.IsOn(job.ID) {
			agent.Release()
		}
		agent.MovePath = nil
	}
	m.sendJob(events.TopicJobBlocked, job, tick)
	job.Unassign()
	m.logger.Info("job blocked, no path", zap.Uint32("job", uint32(job.ID)))
}

func (m *Machine) pending(s world.Store, job *models.Job, tick uint64) {
	agent, assigned := agentOf(s, job)

	if job.NeedsResources() && !job.RequirementsMet() {
		if assigned && job.IsReserved() {
			job.State = models.JobFetchingResources
		}
		return
	}

	if !assigned {
		return
	}
	if job.TargetPosition == nil {
		job.State = models.JobInProgress
		return
	}
	if at(s, agent, *job.TargetPosition) {
		job.State = models.JobAtSite
		return
	}
	if !m.routeTo(s, agent, *job.TargetPosition) {
		m.block(s, job, tick)
		return
	}
	job.State = models.JobGoingToSite
}

func (m *Machine) goingToSite(s world.Store, job *models.Job, tick uint64) {
	agent, ok := agentOf(s, job)
	if !ok {
		return
	}
	if job.TargetPosition == nil || at(s, agent, *job.TargetPosition) {
		job.State = models.JobAtSite
		return
	}
	if len(agent.MovePath) == 0 && !m.routeTo(s, agent, *job.TargetPosition) {
		m.block(s, job, tick)
	}
}
