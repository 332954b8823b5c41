//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/jobforge/internal/effects"
	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/orchestrator"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// colonyScenario has one hauler that must carry six wood in two trips to a
// wall site, then saw planks once the wall is done.
const colonyScenario = `
stockpiles:
  - id: 1
    resources: {wood: 6}
agents:
  - entity_id: 2
    state: idle
    inventory: {max_weight: 3}
jobs:
  - id: 3
    job_type: build_wall
    priority: 5
    resource_requirements: [{kind: wood, amount: 6}]
    target_position: {x: 4, y: 0}
  - id: 4
    job_type: saw_planks
    priority: 1
    target_position: {x: 4, y: 0}
    dependencies: ["3"]
positions:
  1: {x: 0, y: 0}
  2: {x: 0, y: 0}
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "colony.yaml")
	if err := os.WriteFile(path, []byte(colonyScenario), 0644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

// newColony loads the scenario and wires an orchestrator the way the CLI does.
func newColony(t *testing.T, w *world.World) (*orchestrator.Orchestrator, *events.Log) {
	t.Helper()
	sched := orchestrator.NewContext()
	err := sched.JobTypes.Register(models.JobTypeDef{
		Name: "saw_planks",
		Effects: []models.Effect{{
			Action: effects.ActionModifyResource,
			Params: map[string]any{"kind": "plank", "amount": 2},
		}},
	})
	if err != nil {
		t.Fatalf("register job type: %v", err)
	}

	log := events.NewLog()
	log.Attach(sched.Bus)

	o, err := orchestrator.New(w, sched, orchestrator.WithPathfinder(world.NewGridPather(w)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o, log
}

func completionTick(log *events.Log, id models.EntityID) (uint64, bool) {
	for _, ev := range log.Events() {
		if ev.Topic == events.TopicJobCompleted && ev.Payload.Entity == id {
			return ev.Tick, true
		}
	}
	return 0, false
}

func TestColonyScenario_HaulsBuildsAndSaws(t *testing.T) {
	w, err := world.LoadScenario(writeScenario(t))
	if err != nil {
		t.Fatalf("LoadScenario() error = %v", err)
	}
	o, log := newColony(t, w)

	r := orchestrator.NewRunner(o, orchestrator.WithMover(w))
	if _, err := r.Run(context.Background(), 150); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, id := range []models.EntityID{3, 4} {
		j, ok := w.Job(id)
		if !ok {
			t.Fatalf("job %d missing", id)
		}
		if j.State != models.JobComplete {
			t.Errorf("job %d state = %s, want complete", id, j.State)
		}
	}

	sp, _ := w.Stockpile(1)
	if got := sp.Amount("wood"); got != 0 {
		t.Errorf("stockpile wood = %d, want 0", got)
	}
	if got := sp.Amount("plank"); got != 2 {
		t.Errorf("stockpile plank = %d, want 2", got)
	}

	wall, ok := completionTick(log, 3)
	if !ok {
		t.Fatal("no job_completed event for the wall")
	}
	planks, ok := completionTick(log, 4)
	if !ok {
		t.Fatal("no job_completed event for the planks")
	}
	if planks <= wall {
		t.Errorf("planks completed at tick %d, before the wall at tick %d", planks, wall)
	}

	agent, _ := w.Agent(2)
	if agent.State != models.AgentIdle {
		t.Errorf("agent state = %s, want idle", agent.State)
	}
	if len(agent.CarriedResources) != 0 {
		t.Errorf("agent still carries %v", agent.CarriedResources)
	}
}

func TestColonyScenario_ReplayMatchesLog(t *testing.T) {
	w, err := world.LoadScenario(writeScenario(t))
	if err != nil {
		t.Fatalf("LoadScenario() error = %v", err)
	}
	o, log := newColony(t, w)
	if _, err := orchestrator.NewRunner(o, orchestrator.WithMover(w)).Run(context.Background(), 60); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "events.json")
	if err := log.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := events.LoadLog(path)
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}

	bus := events.NewBus()
	replayed := events.NewLog()
	replayed.Attach(bus)
	if n := loaded.Replay(bus); n != log.Len() {
		t.Errorf("Replay() = %d events, want %d", n, log.Len())
	}
	if replayed.Len() != log.Len() {
		t.Errorf("replayed log has %d events, want %d", replayed.Len(), log.Len())
	}
}
