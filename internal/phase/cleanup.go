package phase

import (
	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/reservation"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// cancel runs the one-time cancellation cleanup: carried resources are
// dropped as loose items where the agent stands, the agent goes idle and the
// reservation is released. Applied effects are rolled back.
func (m *Machine) cancel(s world.Store, job *models.Job) error {
	job.State = models.JobCancelled
	if _, err := m.effects.Rollback(s, job, m.Effects(job)); err != nil {
		return err
	}
	if agent, ok := agentOf(s, job); ok {
		dropped := DropCarried(s, agent)
		if agent.IsOn(job.ID) {
			agent.Release()
		}
		agent.MovePath = nil
		if dropped > 0 {
			m.logger.Info("dropped carried resources",
				zap.Uint32("job", uint32(job.ID)),
				zap.Uint32("agent", uint32(agent.ID)),
				zap.Int("items", dropped))
		}
	}
	for i := range job.Children {
		if !job.Children[i].State.IsTerminal() {
			job.Children[i].State = models.JobCancelled
		}
	}
	reservation.Release(job)
	job.CancelledCleanupDone = true
	return nil
}

// DropCarried turns every carried line into a loose item at the agent's
// position and empties the agent's hands. It returns the number of items.
// Whoever separates an agent from its job calls it, so a load never follows
// the agent onto other work.
func DropCarried(s world.Store, agent *models.Agent) int {
	pos, _ := s.Position(agent.ID)
	n := 0
	for _, line := range agent.CarriedResources {
		if line.Amount <= 0 {
			continue
		}
		s.SpawnItem(models.Item{Kind: line.Kind, Amount: line.Amount, Loose: true, Position: pos})
		n++
	}
	agent.CarriedResources = nil
	agent.CarryingFor = nil
	return n
}
