// Package graph provides the job dependency graph used to order job processing.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/jobforge/internal/deps"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the job graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents a directed graph of job dependencies.
// Jobs are nodes, and edges point from a job to the jobs its dependency
// expression references.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps job ID to the job itself.
	nodes map[models.EntityID]*models.Job
	// edges maps job ID to the IDs it references, ascending.
	edges map[models.EntityID][]models.EntityID
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[models.EntityID]*models.Job),
		edges:    make(map[models.EntityID][]models.EntityID),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from jobs. Every job id named anywhere in a
// dependency expression (including under all_of, any_of and not) becomes an
// edge. References to jobs outside the set are dropped: a missing job has no
// processing order to respect. Returns ErrCycleDetected if the edges loop.
func (g *DependencyGraph) Build(jobs []*models.Job) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[models.EntityID]*models.Job, len(jobs))
	g.edges = make(map[models.EntityID][]models.EntityID, len(jobs))

	for _, job := range jobs {
		g.nodes[job.ID] = job
	}

	for _, job := range jobs {
		var out []models.EntityID
		for _, ref := range deps.References(job.Dependencies) {
			if _, exists := g.nodes[ref]; !exists {
				g.debugLog("[graph.Build] job %d references missing job %d", job.ID, ref)
				continue
			}
			out = append(out, ref)
		}
		g.edges[job.ID] = out
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return fmt.Errorf("%w: %v", ErrCycleDetected, cycle)
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked() != nil
}

// findCycleLocked runs a coloured depth-first search and returns the ids on the
// first back edge found, or nil. Assumes the lock is held.
func (g *DependencyGraph) findCycleLocked() []models.EntityID {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[models.EntityID]int, len(g.nodes))
	var stack []models.EntityID
	var cycle []models.EntityID

	var visit func(id models.EntityID) bool
	visit = func(id models.EntityID) bool {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				for i, s := range stack {
					if s == depID {
						cycle = append(append([]models.EntityID(nil), stack[i:]...), depID)
						break
					}
				}
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return false
	}

	for _, id := range g.sortedIDsLocked() {
		if colors[id] == 0 && visit(id) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort returns job IDs so that every job comes after the jobs it
// references. Ties are broken by ascending id, so the order is stable across ticks.
func (g *DependencyGraph) TopologicalSort() ([]models.EntityID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if cycle := g.findCycleLocked(); cycle != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycleDetected, cycle)
	}

	visited := make(map[models.EntityID]bool, len(g.nodes))
	result := make([]models.EntityID, 0, len(g.nodes))

	var visit func(id models.EntityID)
	visit = func(id models.EntityID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.sortedIDsLocked() {
		visit(id)
	}
	return result, nil
}

// Job returns the job for a given ID, or nil if not found.
func (g *DependencyGraph) Job(id models.EntityID) *models.Job {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of jobs in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs the given job references.
func (g *DependencyGraph) Dependencies(id models.EntityID) []models.EntityID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// Dependents returns the IDs of jobs that reference the given job, ascending.
func (g *DependencyGraph) Dependents(id models.EntityID) []models.EntityID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []models.EntityID
	for _, from := range g.sortedIDsLocked() {
		for _, depID := range g.edges[from] {
			if depID == id {
				dependents = append(dependents, from)
				break
			}
		}
	}
	return dependents
}

func (g *DependencyGraph) sortedIDsLocked() []models.EntityID {
	ids := make([]models.EntityID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
