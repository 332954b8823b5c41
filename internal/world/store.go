// Package world provides the entity document store the job engine runs against,
// together with the small collaborators a simulation needs around it: grid
// pathing, the movement step and scenario loading.
package world

import "github.com/ShayCichocki/jobforge/pkg/models"

// JobStore handles job documents.
type JobStore interface {
	// Job returns the live job document for id.
	Job(id models.EntityID) (*models.Job, bool)
	// JobIDs returns all job entity ids in ascending order.
	JobIDs() []models.EntityID
	// InsertJob allocates a fresh entity for job and returns its id.
	InsertJob(job models.Job) models.EntityID
}

// AgentStore handles agent documents.
type AgentStore interface {
	Agent(id models.EntityID) (*models.Agent, bool)
	AgentIDs() []models.EntityID
}

// StockpileStore handles stockpile documents.
type StockpileStore interface {
	Stockpile(id models.EntityID) (*models.Stockpile, bool)
	StockpileIDs() []models.EntityID
}

// PositionStore resolves entity positions.
type PositionStore interface {
	Position(id models.EntityID) (models.Position, bool)
	SetPosition(id models.EntityID, p models.Position)
}

// ComponentStore is the generic per-entity document interface.
// Typed components ("Job", "Agent", "Stockpile", "Position", "Item") are
// exposed through it as JSON as well.
type ComponentStore interface {
	Exists(id models.EntityID) bool
	Component(id models.EntityID, name string) ([]byte, bool)
	SetComponent(id models.EntityID, name string, doc []byte) error
}

// ResourceLookup answers global resource questions.
type ResourceLookup interface {
	// GlobalResourceAmount returns the total stock of kind across all stockpiles.
	GlobalResourceAmount(kind string) float64
	// Scarcity returns the utility weight of producing one unit of kind.
	Scarcity(kind string) float64
	// ResourceDefinition returns unit properties for kind.
	ResourceDefinition(kind string) models.ResourceDefinition
}

// ItemSpawner places loose items in the world.
type ItemSpawner interface {
	SpawnItem(item models.Item) models.EntityID
}

// Store is everything the job engine reads and writes.
type Store interface {
	JobStore
	AgentStore
	StockpileStore
	PositionStore
	ComponentStore
	ResourceLookup
	ItemSpawner
}

// Compile-time verification that World implements all interfaces.
var (
	_ Store          = (*World)(nil)
	_ JobStore       = (*World)(nil)
	_ AgentStore     = (*World)(nil)
	_ StockpileStore = (*World)(nil)
	_ PositionStore  = (*World)(nil)
	_ ComponentStore = (*World)(nil)
	_ ResourceLookup = (*World)(nil)
	_ ItemSpawner    = (*World)(nil)
)
