package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/jobforge/pkg/models"
)

func TestWorld_InsertJobAllocatesIDs(t *testing.T) {
	w := New()
	w.PutStockpile(models.NewStockpile(4, map[string]int64{"wood": 2}))

	id := w.InsertJob(models.NewJob("haul", 1))
	assert.Equal(t, models.EntityID(5), id, "allocation continues past claimed ids")

	j, ok := w.Job(id)
	require.True(t, ok)
	assert.Equal(t, id, j.ID)
	assert.Equal(t, models.JobPending, j.State)
}

func TestWorld_ScarcityThresholds(t *testing.T) {
	tests := []struct {
		stock int64
		want  float64
	}{
		{0, 10},
		{9, 5},
		{10, 1},
		{99, 1},
		{100, 0},
	}

	for _, tt := range tests {
		w := New()
		w.PutStockpile(models.NewStockpile(1, map[string]int64{"stone": tt.stock}))
		assert.Equal(t, tt.want, w.Scarcity("stone"), "stock %d", tt.stock)
	}
}

func TestWorld_GenericComponents(t *testing.T) {
	w := New()
	id := w.Spawn()

	require.NoError(t, w.SetComponent(id, "Health", []byte(`{"hp": 12}`)))
	doc, ok := w.Component(id, "Health")
	require.True(t, ok)
	assert.JSONEq(t, `{"hp": 12}`, string(doc))

	assert.Error(t, w.SetComponent(id, "Health", []byte(`{broken`)))
	assert.Error(t, w.SetComponent(999, "Health", []byte(`{}`)))
}

func TestWorld_TypedComponentsThroughGenericAPI(t *testing.T) {
	w := New()
	w.PutAgent(models.NewAgent(1))
	w.SetPosition(1, models.Position{X: 2, Y: 3})

	doc, ok := w.Component(1, ComponentAgent)
	require.True(t, ok)
	assert.Contains(t, string(doc), `"state":"idle"`)

	require.NoError(t, w.SetComponent(1, ComponentAgent, []byte(`{"state":"working","current_job":7}`)))
	a, ok := w.Agent(1)
	require.True(t, ok)
	assert.Equal(t, models.AgentWorking, a.State)
	assert.True(t, a.IsOn(7))
	assert.Equal(t, models.EntityID(1), a.ID)
}

func TestGridPather(t *testing.T) {
	w := New()
	p := NewGridPather(w)

	path, ok := p.FindPath(models.Cell{X: 0, Y: 0}, models.Cell{X: 2, Y: 1})
	require.True(t, ok)
	assert.Equal(t, []models.Cell{{X: 1}, {X: 2}, {X: 2, Y: 1}}, path.Cells)
	assert.Equal(t, 3.0, path.TotalCost)

	same, ok := p.FindPath(models.Cell{X: 1}, models.Cell{X: 1})
	require.True(t, ok)
	assert.Empty(t, same.Cells)

	w.SetBlocked(models.Cell{X: 1}, true)
	_, ok = p.FindPath(models.Cell{X: 0, Y: 0}, models.Cell{X: 2, Y: 1})
	assert.False(t, ok, "blocked route has no path")
}

func TestWorld_StepMovement(t *testing.T) {
	w := New()
	a := models.NewAgent(1)
	a.MovePath = []models.Cell{{X: 1}, {X: 2}}
	w.PutAgent(a)
	w.SetPosition(1, models.Position{})

	assert.Equal(t, 1, w.StepMovement())
	pos, _ := w.Position(1)
	assert.Equal(t, models.Position{X: 1}, pos)

	w.StepMovement()
	agent, _ := w.Agent(1)
	assert.Nil(t, agent.MovePath)
	assert.Equal(t, 0, w.StepMovement())
}

func TestLoadScenario_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	content := `
resources:
  - kind: wood
    unit_weight: 1.5
stockpiles:
  - id: 1
    resources: {wood: 7}
agents:
  - entity_id: 2
    state: idle
    inventory: {max_weight: 3}
jobs:
  - id: 3
    job_type: build_wall
    priority: 2
    resource_requirements: [{kind: wood, amount: 7}]
    target_position: {x: 5, y: 0}
    dependencies: ["9", {not: ["4"]}]
positions:
  1: {x: 0, y: 0}
  2: {x: 1, y: 0}
components:
  - entity: 2
    name: Health
    value: {hp: 10}
blocked_cells:
  - {x: 3, y: 3}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	w, err := LoadScenario(path)
	require.NoError(t, err)

	sp, ok := w.Stockpile(1)
	require.True(t, ok)
	assert.Equal(t, int64(7), sp.Amount("wood"))

	j, ok := w.Job(3)
	require.True(t, ok)
	assert.Equal(t, models.JobPending, j.State)
	require.NotNil(t, j.Dependencies)
	assert.Equal(t, models.DependencyAnd, j.Dependencies.Kind)

	pos, ok := w.Position(2)
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.X)

	assert.Equal(t, 1.5, w.ResourceDefinition("wood").UnitWeight)
	assert.True(t, w.IsBlocked(models.Cell{X: 3, Y: 3}))

	doc, ok := w.Component(2, "Health")
	require.True(t, ok)
	assert.JSONEq(t, `{"hp": 10}`, string(doc))

	assert.Equal(t, models.EntityID(4), w.Spawn(), "next id follows the highest loaded id")
}

func TestSnapshotRoundTrip(t *testing.T) {
	w := New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"wood": 3}))
	w.PutAgent(models.NewAgent(2))
	w.SetPosition(2, models.Position{X: 4})
	w.InsertJob(models.NewJob("haul", 1))
	w.SpawnItem(models.Item{Kind: "wood", Amount: 2, Loose: true, Position: models.Position{X: 4}})

	back, err := FromSnapshot(w.Snapshot(10))
	require.NoError(t, err)

	assert.Equal(t, w.JobIDs(), back.JobIDs())
	assert.Equal(t, w.AgentIDs(), back.AgentIDs())
	assert.Len(t, back.Items(), 1)
	pos, ok := back.Position(2)
	require.True(t, ok)
	assert.Equal(t, 4.0, pos.X)
}
