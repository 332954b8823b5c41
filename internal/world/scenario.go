package world

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/jobforge/pkg/models"
)

// ComponentDoc is a generic component attached to an entity.
type ComponentDoc struct {
	Entity models.EntityID `json:"entity"`
	Name   string          `json:"name"`
	Value  json.RawMessage `json:"value"`
}

// Snapshot is the serializable form of a world. Scenario files use the same shape.
type Snapshot struct {
	Tick         uint64                              `json:"tick,omitempty"`
	Resources    []models.ResourceDefinition         `json:"resources,omitempty"`
	Stockpiles   []models.Stockpile                  `json:"stockpiles,omitempty"`
	Agents       []models.Agent                      `json:"agents,omitempty"`
	Jobs         []models.Job                        `json:"jobs,omitempty"`
	Items        []models.Item                       `json:"items,omitempty"`
	Positions    map[models.EntityID]models.Position `json:"positions,omitempty"`
	Components   []ComponentDoc                      `json:"components,omitempty"`
	BlockedCells []models.Cell                       `json:"blocked_cells,omitempty"`
}

// FromSnapshot builds a world from a snapshot.
func FromSnapshot(s Snapshot) (*World, error) {
	w := New()
	for _, def := range s.Resources {
		w.DefineResource(def)
	}
	for _, sp := range s.Stockpiles {
		w.PutStockpile(sp)
	}
	for _, a := range s.Agents {
		if !a.State.Valid() && a.State != "" {
			return nil, fmt.Errorf("agent %d: unknown state %q", a.ID, a.State)
		}
		w.PutAgent(a)
	}
	for _, j := range s.Jobs {
		if j.State == "" {
			j.State = models.JobPending
		}
		if !j.State.Valid() {
			return nil, fmt.Errorf("job %d: unknown state %q", j.ID, j.State)
		}
		w.PutJob(j)
	}
	for _, it := range s.Items {
		w.claim(it.ID)
		w.items[it.ID] = &it
		w.positions[it.ID] = it.Position
	}
	for id, p := range s.Positions {
		w.claim(id)
		w.positions[id] = p
	}
	for _, c := range s.Components {
		w.claim(c.Entity)
		if err := w.SetComponent(c.Entity, c.Name, c.Value); err != nil {
			return nil, err
		}
	}
	for _, c := range s.BlockedCells {
		w.SetBlocked(c, true)
	}
	return w, nil
}

// Snapshot captures the current world.
func (w *World) Snapshot(tick uint64) Snapshot {
	s := Snapshot{Tick: tick, Positions: make(map[models.EntityID]models.Position, len(w.positions))}
	for _, def := range w.resources {
		s.Resources = append(s.Resources, def)
	}
	sort.Slice(s.Resources, func(i, j int) bool { return s.Resources[i].Kind < s.Resources[j].Kind })
	for _, id := range w.StockpileIDs() {
		s.Stockpiles = append(s.Stockpiles, *w.stockpiles[id])
	}
	for _, id := range w.AgentIDs() {
		s.Agents = append(s.Agents, *w.agents[id])
	}
	for _, id := range w.JobIDs() {
		s.Jobs = append(s.Jobs, *w.jobs[id])
	}
	s.Items = w.Items()
	for id, p := range w.positions {
		if _, isItem := w.items[id]; isItem {
			continue
		}
		s.Positions[id] = p
	}
	for _, id := range sortedKeys(w.components) {
		for name, doc := range w.components[id] {
			s.Components = append(s.Components, ComponentDoc{Entity: id, Name: name, Value: doc})
		}
	}
	for c := range w.blocked {
		s.BlockedCells = append(s.BlockedCells, c)
	}
	return s
}

// LoadScenario reads a scenario file. YAML (.yaml, .yml) and JSON are accepted.
func LoadScenario(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	snap, err := DecodeSnapshot(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return FromSnapshot(snap)
}

// DecodeSnapshot decodes a snapshot. ext selects YAML for ".yaml"/".yml".
func DecodeSnapshot(data []byte, ext string) (Snapshot, error) {
	var snap Snapshot
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		doc, err := YAMLToJSON(data)
		if err != nil {
			return snap, err
		}
		data = doc
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// YAMLToJSON converts a YAML document into JSON so the models' JSON decoders
// (dependency grammar, extra bags) apply to YAML input unchanged.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}

func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
