// Package effects applies and rolls back the named side effects a job type
// declares.
package effects

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// UndoPrefix is prepended to an action name to find its rollback handler.
const UndoPrefix = "Undo"

// Handler runs one effect for job against the store.
type Handler func(s world.Store, job *models.Job, effect models.Effect) error

// Registry maps action names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register sets the handler for action. Rollback handlers are registered
// under UndoPrefix+action.
func (r *Registry) Register(action string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// RegisterUndo is shorthand for Register(UndoPrefix+action, h).
func (r *Registry) RegisterUndo(action string, h Handler) {
	r.Register(UndoPrefix+action, h)
}

// Handler returns the handler for action.
func (r *Registry) Handler(action string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[action]
	return h, ok
}

// Undo returns the rollback handler for action.
func (r *Registry) Undo(action string) (Handler, bool) {
	return r.Handler(UndoPrefix + action)
}

// Actions returns the registered action names in sorted order.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
