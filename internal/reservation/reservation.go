// Package reservation allocates stockpile quantities to pending jobs.
package reservation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/jobforge/internal/deps"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Status describes a job's reservation.
type Status int

const (
	// StatusNotFound means the job does not exist.
	StatusNotFound Status = iota
	// StatusNotRequired means the job needs no resources.
	StatusNotRequired
	// StatusWaitingForResources means no stockpile could cover the job yet.
	StatusWaitingForResources
	// StatusReserved means a stockpile is holding the job's requirements.
	StatusReserved
)

// String returns a readable status name.
func (s Status) String() string {
	switch s {
	case StatusNotRequired:
		return "not_required"
	case StatusWaitingForResources:
		return "waiting_for_resources"
	case StatusReserved:
		return "reserved"
	default:
		return "not_found"
	}
}

// Result summarises one reservation pass.
type Result struct {
	Reserved []models.EntityID
	Waiting  []models.EntityID
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager runs reservation passes over the store.
type Manager struct {
	logger *zap.Logger
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ledger is the in-memory view of stockpile contents for a single pass.
type ledger map[models.EntityID]map[string]int64

func (l ledger) canReserve(sp models.EntityID, need models.Resources) bool {
	stock := l[sp]
	for _, kind := range need.Kinds() {
		if stock[kind] < need.Amount(kind) {
			return false
		}
	}
	return true
}

func (l ledger) subtract(sp models.EntityID, lines models.Resources) {
	for _, line := range lines {
		l[sp][line.Kind] -= line.Amount
	}
}

// Reserve runs one pass. Pending and interrupted jobs have their previous
// reservation cleared and are then, in ascending id order, matched against
// the first stockpile whose remaining stock covers every line the job has
// not had delivered yet. A matched job is stamped with the reservation and
// moves to fetching_resources.
//
// The ledger starts from actual stock minus what jobs already hauling still
// have to pick up, so a reservation made in an earlier pass stays exclusive.
// Cancelled or blocked jobs and jobs with unmet dependencies are not reserved.
func (m *Manager) Reserve(s world.Store) (Result, error) {
	var res Result

	l := make(ledger)
	for _, id := range s.StockpileIDs() {
		sp, _ := s.Stockpile(id)
		stock := make(map[string]int64, len(sp.Resources))
		for k, v := range sp.Resources {
			stock[k] = v
		}
		l[id] = stock
	}

	jobIDs := s.JobIDs()
	for _, id := range jobIDs {
		job, _ := s.Job(id)
		if awaitsReservation(job) || job.State.IsTerminal() || !job.IsReserved() {
			continue
		}
		if _, ok := l[*job.ReservedStockpile]; !ok {
			continue
		}
		l.subtract(*job.ReservedStockpile, outstanding(s, job))
	}

	for _, id := range jobIDs {
		job, _ := s.Job(id)
		if !awaitsReservation(job) {
			continue
		}
		job.ClearReservation()
		if job.Cancelled || job.Blocked || !job.NeedsResources() || job.RequirementsMet() {
			continue
		}
		ok, err := deps.Satisfied(s, job)
		if err != nil {
			return res, fmt.Errorf("reserve: %w", err)
		}
		if !ok {
			continue
		}

		need := job.Remaining()
		reserved := false
		for _, spID := range s.StockpileIDs() {
			if !l.canReserve(spID, need) {
				continue
			}
			l.subtract(spID, need)
			job.ReservedResources = need
			job.ReservedStockpile = models.IDPtr(spID)
			job.State = models.JobFetchingResources
			reserved = true
			m.logger.Debug("reserved resources",
				zap.Uint32("job", uint32(id)),
				zap.Uint32("stockpile", uint32(spID)))
			break
		}
		if reserved {
			res.Reserved = append(res.Reserved, id)
		} else {
			res.Waiting = append(res.Waiting, id)
		}
	}
	return res, nil
}

func awaitsReservation(job *models.Job) bool {
	return job.State == models.JobPending || job.State == models.JobInterrupted
}

// outstanding returns the reserved quantities a hauling job has not yet
// delivered or picked up. Deliveries made before the reservation are not
// part of it.
func outstanding(s world.Store, job *models.Job) models.Resources {
	var carried models.Resources
	if job.AssignedTo != nil {
		if a, ok := s.Agent(*job.AssignedTo); ok {
			carried = a.CarriedFor(job.ID)
		}
	}
	var out models.Resources
	for _, kind := range job.ReservedResources.Kinds() {
		need := job.ResourceRequirements.Amount(kind) - job.DeliveredResources.Amount(kind) - carried.Amount(kind)
		left := min(job.ReservedResources.Amount(kind), need)
		if left > 0 {
			out = append(out, models.ResourceAmount{Kind: kind, Amount: left})
		}
	}
	return out
}

// StatusOf reports the reservation status of a job.
func StatusOf(s world.JobStore, id models.EntityID) Status {
	job, ok := s.Job(id)
	switch {
	case !ok:
		return StatusNotFound
	case !job.NeedsResources():
		return StatusNotRequired
	case job.IsReserved():
		return StatusReserved
	default:
		return StatusWaitingForResources
	}
}

// Release clears the reservation stamp on job.
func Release(job *models.Job) {
	job.ClearReservation()
}
