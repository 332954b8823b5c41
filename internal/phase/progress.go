package phase

import (
	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/jobtypes"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// RequiredProgress returns the progress at which job completes: the job's
// own value, else its type's duration, else the configured default.
func (m *Machine) RequiredProgress(job *models.Job) float64 {
	if job.RequiredProgress > 0 {
		return job.RequiredProgress
	}
	return m.jobTypes.RequiredProgress(job.JobType, m.cfg.RequiredProgress)
}

// Increment returns the progress an agent adds in one tick:
// max(min_increment, base_rate * skill * stamina/100). Skill defaults to 1.
// An unassigned job progresses at the base rate.
func (m *Machine) Increment(agent *models.Agent, jobType string) float64 {
	if agent == nil {
		return m.cfg.BaseRate
	}
	skill, ok := agent.Skill(jobType)
	if !ok {
		skill = 1.0
	}
	inc := m.cfg.BaseRate * skill * agent.StaminaOrDefault() / models.DefaultStamina
	return max(inc, m.cfg.MinIncrement)
}

func (m *Machine) inProgress(s world.Store, job *models.Job, tick uint64) error {
	agent, _ := agentOf(s, job)
	before := job.Progress

	handled, err := m.jobTypes.Handle(jobtypes.HandlerContext{Store: s, Job: job, Agent: agent, Tick: tick})
	if err != nil {
		return err
	}
	if handled {
		if job.Progress != before {
			m.sendJob(events.TopicJobProgressed, job, tick)
		}
		return nil
	}

	if _, err := m.effects.ApplyNext(s, job, m.Effects(job)); err != nil {
		return err
	}

	if agent != nil && job.TargetPosition != nil && !at(s, agent, *job.TargetPosition) {
		return nil
	}

	job.Progress += m.Increment(agent, job.JobType)
	if job.Progress != before {
		m.sendJob(events.TopicJobProgressed, job, tick)
	}
	if required := m.RequiredProgress(job); job.Progress >= required {
		job.State = models.JobComplete
	}
	return nil
}
