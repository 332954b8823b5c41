// Package spawn creates conditional child jobs once their parent finishes.
package spawn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/jobforge/internal/deps"
	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Store is what the spawner reads and writes.
type Store interface {
	deps.Store
	world.JobStore
}

// ShouldSpawn evaluates a spawn_if predicate against the parent's document.
// Field equality compares the JSON value at the gjson path Field with Equals.
// A condition with no predicate never holds.
func ShouldSpawn(s deps.Store, parent *models.Job, cond models.SpawnCondition) (bool, error) {
	switch {
	case cond.Field != "" && len(cond.Equals) > 0:
		doc, err := json.Marshal(parent)
		if err != nil {
			return false, fmt.Errorf("encode job %d: %w", parent.ID, err)
		}
		v := gjson.GetBytes(doc, cond.Field)
		if !v.Exists() {
			return false, nil
		}
		return jsonEqual([]byte(v.Raw), cond.Equals), nil
	case cond.WorldState != nil:
		return deps.WorldStateHolds(s, cond.WorldState)
	case cond.EntityState != nil:
		return deps.EntityStateHolds(s, cond.EntityState)
	default:
		return false, nil
	}
}

func jsonEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// KeyOf returns the dedupe key of a child template.
func KeyOf(template models.Job) models.ChildKey {
	return models.ChildKey{JobType: template.JobType, Category: template.Category}
}

// Run spawns every conditional child of parent whose predicate holds and that
// was not spawned before, either as recorded on the parent or as found in the
// store. Children are inserted as fresh pending jobs created at tick. It
// returns the ids of the spawned jobs.
func Run(s Store, parent *models.Job, tick uint64) ([]models.EntityID, error) {
	var spawned []models.EntityID
	for i, entry := range parent.ConditionalChildren {
		key := KeyOf(entry.Job)
		if parent.HasSpawned(key) || existsInStore(s, parent.ID, key) {
			continue
		}
		ok, err := ShouldSpawn(s, parent, entry.SpawnIf)
		if err != nil {
			return spawned, fmt.Errorf("conditional child %d of job %d: %w", i, parent.ID, err)
		}
		if !ok {
			continue
		}

		child, err := entry.Job.Clone()
		if err != nil {
			return spawned, err
		}
		child.ID = 0
		child.Parent = models.IDPtr(parent.ID)
		child.State = models.JobPending
		child.Progress = 0
		child.AssignedTo = nil
		child.AppliedEffects = nil
		child.SpawnedConditionalChildren = nil
		if child.EffectivePriority == 0 {
			child.EffectivePriority = child.Priority
		}
		at := tick
		child.CreatedAt = &at

		id := s.InsertJob(child)
		parent.SpawnedConditionalChildren = append(parent.SpawnedConditionalChildren, key)
		spawned = append(spawned, id)
	}
	return spawned, nil
}

func existsInStore(s world.JobStore, parent models.EntityID, key models.ChildKey) bool {
	for _, id := range s.JobIDs() {
		j, ok := s.Job(id)
		if !ok || j.Parent == nil || *j.Parent != parent {
			continue
		}
		if KeyOf(*j) == key {
			return true
		}
	}
	return false
}
