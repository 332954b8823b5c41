package phase

import (
	"math"

	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// capacity is the room left in an agent's inventory.
type capacity struct {
	weight float64
	volume float64
	slots  int
}

func capacityOf(r world.ResourceLookup, agent *models.Agent) capacity {
	c := capacity{weight: math.Inf(1), volume: math.Inf(1), slots: math.MaxInt32}
	inv := agent.Inventory
	if inv == nil {
		return c
	}
	weight, volume, slots := inv.Weight, inv.Volume, inv.Slots
	for _, line := range agent.CarriedResources {
		uw, uv := r.ResourceDefinition(line.Kind).Units()
		weight += uw * float64(line.Amount)
		volume += uv * float64(line.Amount)
		slots++
	}
	if inv.MaxWeight != nil {
		c.weight = *inv.MaxWeight - weight
	}
	if inv.MaxVolume != nil {
		c.volume = *inv.MaxVolume - volume
	}
	if inv.MaxSlots != nil {
		c.slots = *inv.MaxSlots - slots
	}
	return c
}

// Pickup computes the largest load the agent can take from stock toward the
// job's outstanding requirements. Each line is bounded by what is still
// needed, what the stockpile holds and the agent's weight, volume and slot
// room; every picked line takes one slot. Only the load already carried for
// job counts toward its need.
func Pickup(r world.ResourceLookup, agent *models.Agent, job *models.Job, stock map[string]int64) models.Resources {
	room := capacityOf(r, agent)
	own := agent.CarriedFor(job.ID)
	var load models.Resources
	for _, req := range job.ResourceRequirements {
		need := req.Amount - job.DeliveredResources.Amount(req.Kind) - own.Amount(req.Kind) - load.Amount(req.Kind)
		if need <= 0 {
			continue
		}
		avail := stock[req.Kind] - load.Amount(req.Kind)
		if avail <= 0 || room.slots <= 0 {
			continue
		}
		uw, uv := r.ResourceDefinition(req.Kind).Units()
		n := min(need, avail)
		n = min(n, floorUnits(room.weight, uw))
		n = min(n, floorUnits(room.volume, uv))
		if n <= 0 {
			continue
		}
		load = load.Merge(models.Resources{{Kind: req.Kind, Amount: n}})
		room.weight -= uw * float64(n)
		room.volume -= uv * float64(n)
		room.slots--
	}
	return load
}

func floorUnits(room, unit float64) int64 {
	if math.IsInf(room, 1) {
		return math.MaxInt64
	}
	if room <= 0 {
		return 0
	}
	return int64(math.Floor(room/unit + 1e-9))
}

func (m *Machine) fetching(s world.Store, job *models.Job, tick uint64) {
	agent, ok := agentOf(s, job)
	if !ok {
		return
	}
	if job.ReservedStockpile == nil {
		if job.RequirementsMet() {
			job.State = models.JobInProgress
		} else {
			job.State = models.JobPending
		}
		return
	}
	spID := *job.ReservedStockpile
	sp, ok := s.Stockpile(spID)
	if !ok {
		job.ClearReservation()
		job.State = models.JobPending
		return
	}

	if cell, ok := world.CellOfEntity(s, spID); ok && !at(s, agent, cell) {
		if len(agent.MovePath) == 0 && !m.routeTo(s, agent, cell) {
			m.block(s, job, tick)
			return
		}
		job.State = models.JobFetchingResources
		return
	}

	m.dropForeign(s, agent, job)
	load := Pickup(s, agent, job, sp.Resources)
	if load.IsZero() {
		if len(agent.CarriedResources) > 0 {
			m.startDelivery(s, agent, job, tick)
			return
		}
		job.State = models.JobWaitingForResources
		return
	}
	for _, line := range load {
		sp.Add(line.Kind, -line.Amount)
	}
	agent.CarriedResources = agent.CarriedResources.Merge(load)
	agent.CarryingFor = models.IDPtr(job.ID)
	m.logger.Debug("picked up resources",
		zap.Uint32("job", uint32(job.ID)),
		zap.Uint32("agent", uint32(agent.ID)),
		zap.Int64("units", sumAmounts(load)))
	m.startDelivery(s, agent, job, tick)
}

func (m *Machine) startDelivery(s world.Store, agent *models.Agent, job *models.Job, tick uint64) {
	if job.TargetPosition != nil && !at(s, agent, *job.TargetPosition) {
		agent.MovePath = nil
		if !m.routeTo(s, agent, *job.TargetPosition) {
			m.block(s, job, tick)
			return
		}
	}
	job.State = models.JobDeliveringResources
}

func (m *Machine) delivering(s world.Store, job *models.Job, tick uint64) {
	agent, ok := agentOf(s, job)
	if !ok {
		return
	}
	if job.TargetPosition != nil && !at(s, agent, *job.TargetPosition) {
		if len(agent.MovePath) == 0 && !m.routeTo(s, agent, *job.TargetPosition) {
			m.block(s, job, tick)
		}
		return
	}

	m.dropForeign(s, agent, job)
	job.DeliveredResources = deliver(job.ResourceRequirements, job.DeliveredResources, agent.CarriedResources)
	agent.CarriedResources = nil
	agent.CarryingFor = nil
	if job.RequirementsMet() {
		job.State = models.JobInProgress
	} else {
		job.State = models.JobFetchingResources
	}
}

// dropForeign drops a load the agent picked up for some other job.
func (m *Machine) dropForeign(s world.Store, agent *models.Agent, job *models.Job) {
	if len(agent.CarriedResources) == 0 || len(agent.CarriedFor(job.ID)) > 0 {
		return
	}
	if n := DropCarried(s, agent); n > 0 {
		m.logger.Info("dropped load of another job",
			zap.Uint32("job", uint32(job.ID)),
			zap.Uint32("agent", uint32(agent.ID)),
			zap.Int("items", n))
	}
}

// deliver adds carried amounts to delivered, one line per requirement kind.
func deliver(requirements, delivered, carried models.Resources) models.Resources {
	out := make(models.Resources, 0, len(requirements))
	for _, kind := range requirements.Kinds() {
		out = append(out, models.ResourceAmount{
			Kind:   kind,
			Amount: delivered.Amount(kind) + carried.Amount(kind),
		})
	}
	return out
}

func sumAmounts(r models.Resources) int64 {
	var n int64
	for _, line := range r {
		n += line.Amount
	}
	return n
}
