package reservation

import (
	"testing"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

func haulJob(w *world.World, id models.EntityID, kind string, amount int64) *models.Job {
	j := models.NewJob("haul", 0)
	j.ID = id
	j.ResourceRequirements = models.Resources{{Kind: kind, Amount: amount}}
	w.PutJob(j)
	job, _ := w.Job(id)
	return job
}

func TestReserve_Exclusive(t *testing.T) {
	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 10}))
	a := haulJob(w, 2, "wood", 6)
	b := haulJob(w, 3, "wood", 6)
	c := haulJob(w, 4, "wood", 4)

	res, err := NewManager().Reserve(w)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if a.State != models.JobFetchingResources || !a.IsReserved() {
		t.Errorf("job 2: state=%s reserved=%v", a.State, a.IsReserved())
	}
	if b.State != models.JobPending || b.IsReserved() {
		t.Errorf("job 3 should wait: state=%s reserved=%v", b.State, b.IsReserved())
	}
	if c.State != models.JobFetchingResources || *c.ReservedStockpile != 1 {
		t.Errorf("job 4 should take the remainder: state=%s", c.State)
	}

	total := a.ReservedResources.Amount("wood") + c.ReservedResources.Amount("wood")
	if total > 10 {
		t.Errorf("reserved %d wood from a stock of 10", total)
	}
	if len(res.Reserved) != 2 || len(res.Waiting) != 1 || res.Waiting[0] != 3 {
		t.Errorf("Result = %+v", res)
	}

	sp, _ := w.Stockpile(1)
	if sp.Amount("wood") != 10 {
		t.Errorf("reservation must not touch real stock, got %d", sp.Amount("wood"))
	}
}

func TestReserve_LaterPassRespectsOutstandingClaims(t *testing.T) {
	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 10}))
	a := haulJob(w, 2, "wood", 6)
	m := NewManager()
	if _, err := m.Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if a.State != models.JobFetchingResources {
		t.Fatalf("job 2 state = %s", a.State)
	}

	b := haulJob(w, 3, "wood", 6)
	if _, err := m.Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if b.IsReserved() {
		t.Error("job 3 must not reserve wood still owed to job 2")
	}

	// Once job 2 has delivered everything its claim is spent.
	sp, _ := w.Stockpile(1)
	sp.Add("wood", -6)
	a.DeliveredResources = models.Resources{{Kind: "wood", Amount: 6}}
	sp.Add("wood", 2)
	if _, err := m.Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !b.IsReserved() {
		t.Error("job 3 should reserve after job 2's claim is delivered")
	}
}

func TestReserve_OnlyWhatIsStillMissing(t *testing.T) {
	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 2}))
	a := haulJob(w, 2, "wood", 6)
	a.DeliveredResources = models.Resources{{Kind: "wood", Amount: 4}}

	m := NewManager()
	if _, err := m.Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !a.IsReserved() || a.ReservedResources.Amount("wood") != 2 {
		t.Fatalf("job 2 reserved %v, want wood 2", a.ReservedResources)
	}

	// The claim covers the missing two units only.
	sp, _ := w.Stockpile(1)
	sp.Add("wood", 3)
	b := haulJob(w, 3, "wood", 3)
	if _, err := m.Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !b.IsReserved() {
		t.Error("job 3 should reserve the stock beyond job 2's claim")
	}
}

func TestReserve_InterruptedJobReserves(t *testing.T) {
	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 5}))
	a := haulJob(w, 2, "wood", 5)
	a.State = models.JobInterrupted

	if _, err := NewManager().Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if a.State != models.JobFetchingResources || !a.IsReserved() {
		t.Errorf("state=%s reserved=%v", a.State, a.IsReserved())
	}
}

func TestReserve_FirstMatchingStockpile(t *testing.T) {
	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 2, "stone": 9}))
	w.PutStockpile(models.NewStockpile(2, map[string]int64{"wood": 5, "stone": 1}))
	w.PutStockpile(models.NewStockpile(3, map[string]int64{"wood": 5, "stone": 5}))

	j := models.NewJob("build", 0)
	j.ID = 10
	j.ResourceRequirements = models.Resources{{Kind: "wood", Amount: 3}, {Kind: "stone", Amount: 2}}
	w.PutJob(j)

	if _, err := NewManager().Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	job, _ := w.Job(10)
	if job.ReservedStockpile == nil || *job.ReservedStockpile != 3 {
		t.Errorf("ReservedStockpile = %v, want 3", job.ReservedStockpile)
	}
}

func TestReserve_SkipsIneligible(t *testing.T) {
	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 50}))

	blocked := haulJob(w, 2, "wood", 1)
	blocked.Blocked = true
	cancelled := haulJob(w, 3, "wood", 1)
	cancelled.Cancelled = true
	waiting := haulJob(w, 4, "wood", 1)
	waiting.Dependencies = models.DependsOn(99)
	free := models.NewJob("sweep", 0)
	free.ID = 5
	w.PutJob(free)

	if _, err := NewManager().Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	for _, id := range []models.EntityID{2, 3, 4, 5} {
		job, _ := w.Job(id)
		if job.IsReserved() || job.State != models.JobPending {
			t.Errorf("job %d: state=%s reserved=%v, want untouched", id, job.State, job.IsReserved())
		}
	}
}

func TestStatusOfAndRelease(t *testing.T) {
	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 1}))
	j := haulJob(w, 2, "wood", 1)
	free := models.NewJob("sweep", 0)
	free.ID = 3
	w.PutJob(free)

	if got := StatusOf(w, 2); got != StatusWaitingForResources {
		t.Errorf("StatusOf(2) before = %s", got)
	}
	if _, err := NewManager().Reserve(w); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got := StatusOf(w, 2); got != StatusReserved {
		t.Errorf("StatusOf(2) after = %s", got)
	}
	if got := StatusOf(w, 3); got != StatusNotRequired {
		t.Errorf("StatusOf(3) = %s", got)
	}
	if got := StatusOf(w, 99); got != StatusNotFound {
		t.Errorf("StatusOf(99) = %s", got)
	}

	Release(j)
	if j.IsReserved() {
		t.Error("Release left a reservation stamp")
	}
}
