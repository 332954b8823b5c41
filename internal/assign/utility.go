package assign

import (
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// DefaultSpecializationBonus is added when the job category is one of the
// agent's specializations.
const DefaultSpecializationBonus = 1000.0

// Utility scores how well agent fits job. Higher is better.
func Utility(r world.ResourceLookup, agent *models.Agent, job *models.Job, specializationBonus float64) float64 {
	u := agent.Skills[job.JobType] + agent.Preferences[job.JobType]
	for _, out := range job.ResourceOutputs {
		u += r.Scarcity(out.Kind) * float64(out.Amount)
	}
	if agent.HasSpecialization(job.Category) {
		u += specializationBonus
	}
	return u
}

type scored struct {
	job     *models.Job
	utility float64
}

// better reports whether a should be picked over b: higher utility, then
// higher priority, then lower id.
func better(a, b scored) bool {
	if a.utility != b.utility {
		return a.utility > b.utility
	}
	if a.job.Priority != b.job.Priority {
		return a.job.Priority > b.job.Priority
	}
	return a.job.ID < b.job.ID
}
