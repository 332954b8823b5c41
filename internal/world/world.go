package world

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Typed component names.
const (
	ComponentJob       = "Job"
	ComponentAgent     = "Agent"
	ComponentStockpile = "Stockpile"
	ComponentPosition  = "Position"
	ComponentItem      = "Item"
)

// World is an in-memory entity store. It is not safe for concurrent use;
// the engine owns it for the duration of a tick.
type World struct {
	nextID     models.EntityID
	entities   map[models.EntityID]struct{}
	jobs       map[models.EntityID]*models.Job
	agents     map[models.EntityID]*models.Agent
	stockpiles map[models.EntityID]*models.Stockpile
	items      map[models.EntityID]*models.Item
	positions  map[models.EntityID]models.Position
	components map[models.EntityID]map[string]json.RawMessage
	resources  map[string]models.ResourceDefinition
	blocked    map[models.Cell]bool
}

// New creates an empty world. Entity ids start at 1.
func New() *World {
	return &World{
		nextID:     1,
		entities:   make(map[models.EntityID]struct{}),
		jobs:       make(map[models.EntityID]*models.Job),
		agents:     make(map[models.EntityID]*models.Agent),
		stockpiles: make(map[models.EntityID]*models.Stockpile),
		items:      make(map[models.EntityID]*models.Item),
		positions:  make(map[models.EntityID]models.Position),
		components: make(map[models.EntityID]map[string]json.RawMessage),
		resources:  make(map[string]models.ResourceDefinition),
		blocked:    make(map[models.Cell]bool),
	}
}

// Spawn allocates a new entity id.
func (w *World) Spawn() models.EntityID {
	id := w.nextID
	w.nextID++
	w.entities[id] = struct{}{}
	return id
}

func (w *World) claim(id models.EntityID) {
	w.entities[id] = struct{}{}
	if id >= w.nextID {
		w.nextID = id + 1
	}
}

// Exists reports whether the entity is alive.
func (w *World) Exists(id models.EntityID) bool {
	_, ok := w.entities[id]
	return ok
}

// Despawn removes the entity and every component on it.
func (w *World) Despawn(id models.EntityID) {
	delete(w.entities, id)
	delete(w.jobs, id)
	delete(w.agents, id)
	delete(w.stockpiles, id)
	delete(w.items, id)
	delete(w.positions, id)
	delete(w.components, id)
}

// Job returns the live job document for id.
func (w *World) Job(id models.EntityID) (*models.Job, bool) {
	j, ok := w.jobs[id]
	return j, ok
}

// JobIDs returns all job ids in ascending order.
func (w *World) JobIDs() []models.EntityID {
	return sortedKeys(w.jobs)
}

// InsertJob spawns an entity for job, stamping the new id on it.
func (w *World) InsertJob(job models.Job) models.EntityID {
	id := w.Spawn()
	job.ID = id
	w.jobs[id] = &job
	return id
}

// PutJob stores job under its own id, creating the entity if needed.
func (w *World) PutJob(job models.Job) {
	w.claim(job.ID)
	w.jobs[job.ID] = &job
}

// Agent returns the live agent document for id.
func (w *World) Agent(id models.EntityID) (*models.Agent, bool) {
	a, ok := w.agents[id]
	return a, ok
}

// AgentIDs returns all agent ids in ascending order.
func (w *World) AgentIDs() []models.EntityID {
	return sortedKeys(w.agents)
}

// PutAgent stores agent under its own id, creating the entity if needed.
func (w *World) PutAgent(agent models.Agent) {
	if agent.State == "" {
		agent.State = models.AgentIdle
	}
	w.claim(agent.ID)
	w.agents[agent.ID] = &agent
}

// Stockpile returns the live stockpile document for id.
func (w *World) Stockpile(id models.EntityID) (*models.Stockpile, bool) {
	s, ok := w.stockpiles[id]
	return s, ok
}

// StockpileIDs returns all stockpile ids in ascending order.
func (w *World) StockpileIDs() []models.EntityID {
	return sortedKeys(w.stockpiles)
}

// PutStockpile stores stockpile under its own id, creating the entity if needed.
func (w *World) PutStockpile(s models.Stockpile) {
	if s.Resources == nil {
		s.Resources = make(map[string]int64)
	}
	w.claim(s.ID)
	w.stockpiles[s.ID] = &s
}

// Items returns loose items in ascending id order.
func (w *World) Items() []models.Item {
	out := make([]models.Item, 0, len(w.items))
	for _, id := range sortedKeys(w.items) {
		out = append(out, *w.items[id])
	}
	return out
}

// SpawnItem places a loose item at its position.
func (w *World) SpawnItem(item models.Item) models.EntityID {
	id := w.Spawn()
	item.ID = id
	w.items[id] = &item
	w.positions[id] = item.Position
	return id
}

// Position returns the entity position.
func (w *World) Position(id models.EntityID) (models.Position, bool) {
	p, ok := w.positions[id]
	return p, ok
}

// SetPosition moves the entity.
func (w *World) SetPosition(id models.EntityID, p models.Position) {
	w.positions[id] = p
	if it, ok := w.items[id]; ok {
		it.Position = p
	}
}

// DefineResource registers unit properties for a resource kind.
func (w *World) DefineResource(def models.ResourceDefinition) {
	w.resources[def.Kind] = def
}

// ResourceDefinition returns the unit properties for kind.
func (w *World) ResourceDefinition(kind string) models.ResourceDefinition {
	if def, ok := w.resources[kind]; ok {
		return def
	}
	return models.ResourceDefinition{Kind: kind}
}

// GlobalResourceAmount sums kind across all stockpiles.
func (w *World) GlobalResourceAmount(kind string) float64 {
	var total int64
	for _, s := range w.stockpiles {
		total += s.Amount(kind)
	}
	return float64(total)
}

// Scarcity maps the global stock of kind onto a production weight.
func (w *World) Scarcity(kind string) float64 {
	total := w.GlobalResourceAmount(kind)
	switch {
	case total <= 0:
		return 10
	case total < 10:
		return 5
	case total < 100:
		return 1
	default:
		return 0
	}
}

// SetBlocked marks a cell as impassable.
func (w *World) SetBlocked(c models.Cell, blocked bool) {
	if blocked {
		w.blocked[c] = true
		return
	}
	delete(w.blocked, c)
}

// IsBlocked reports whether a cell is impassable.
func (w *World) IsBlocked(c models.Cell) bool {
	return w.blocked[c]
}

// Component returns the JSON document of a component.
func (w *World) Component(id models.EntityID, name string) ([]byte, bool) {
	var v any
	switch name {
	case ComponentJob:
		if j, ok := w.jobs[id]; ok {
			v = j
		}
	case ComponentAgent:
		if a, ok := w.agents[id]; ok {
			v = a
		}
	case ComponentStockpile:
		if s, ok := w.stockpiles[id]; ok {
			v = s
		}
	case ComponentItem:
		if it, ok := w.items[id]; ok {
			v = it
		}
	case ComponentPosition:
		if p, ok := w.positions[id]; ok {
			v = p
		}
	default:
		doc, ok := w.components[id][name]
		return doc, ok
	}
	if v == nil {
		return nil, false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetComponent replaces a component document. Typed components are decoded
// into their models in place, so live pointers see the update; a decode
// failure leaves the old value untouched.
func (w *World) SetComponent(id models.EntityID, name string, doc []byte) error {
	if !w.Exists(id) {
		return fmt.Errorf("set component %s: entity %d does not exist", name, id)
	}
	switch name {
	case ComponentJob:
		var j models.Job
		if err := json.Unmarshal(doc, &j); err != nil {
			return fmt.Errorf("set component %s on %d: %w", name, id, err)
		}
		j.ID = id
		if cur, ok := w.jobs[id]; ok {
			*cur = j
		} else {
			w.jobs[id] = &j
		}
	case ComponentAgent:
		var a models.Agent
		if err := json.Unmarshal(doc, &a); err != nil {
			return fmt.Errorf("set component %s on %d: %w", name, id, err)
		}
		a.ID = id
		if cur, ok := w.agents[id]; ok {
			*cur = a
		} else {
			w.agents[id] = &a
		}
	case ComponentStockpile:
		var s models.Stockpile
		if err := json.Unmarshal(doc, &s); err != nil {
			return fmt.Errorf("set component %s on %d: %w", name, id, err)
		}
		s.ID = id
		if cur, ok := w.stockpiles[id]; ok {
			*cur = s
		} else {
			w.stockpiles[id] = &s
		}
	case ComponentItem:
		var it models.Item
		if err := json.Unmarshal(doc, &it); err != nil {
			return fmt.Errorf("set component %s on %d: %w", name, id, err)
		}
		it.ID = id
		w.items[id] = &it
		w.positions[id] = it.Position
	case ComponentPosition:
		var p models.Position
		if err := json.Unmarshal(doc, &p); err != nil {
			return fmt.Errorf("set component %s on %d: %w", name, id, err)
		}
		w.SetPosition(id, p)
	default:
		if !json.Valid(doc) {
			return fmt.Errorf("set component %s on %d: invalid JSON", name, id)
		}
		if w.components[id] == nil {
			w.components[id] = make(map[string]json.RawMessage)
		}
		w.components[id][name] = append(json.RawMessage(nil), doc...)
	}
	return nil
}

func sortedKeys[V any](m map[models.EntityID]V) []models.EntityID {
	ids := make([]models.EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
