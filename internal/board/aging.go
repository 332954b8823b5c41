package board

import (
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Aging raises effective priority as jobs wait and when they need a resource
// that is running short.
type Aging struct {
	// Factor is the number of ticks per point of age bonus; zero disables aging.
	Factor uint64
	// ShortageBoost is added when any requirement kind is short.
	ShortageBoost int64
}

// Apply recomputes effective_priority for every non-terminal job.
func (a Aging) Apply(s world.JobStore, tick uint64, shortages map[string]bool) {
	for _, id := range s.JobIDs() {
		job, _ := s.Job(id)
		if job.State.IsTerminal() {
			continue
		}
		job.EffectivePriority = a.Effective(job, tick, shortages)
	}
}

// Effective returns the effective priority of job at tick.
func (a Aging) Effective(job *models.Job, tick uint64, shortages map[string]bool) int64 {
	p := job.Priority
	if created := job.CreatedTick(); a.Factor > 0 && tick > created {
		p += int64((tick - created) / a.Factor)
	}
	for _, kind := range job.ResourceRequirements.Kinds() {
		if shortages[kind] {
			p += a.ShortageBoost
			break
		}
	}
	return p
}
