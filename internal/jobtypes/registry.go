// Package jobtypes holds job type definitions and the handlers that replace
// the default in_progress progression for a type.
package jobtypes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// ErrNoScriptHost is returned when a scripted handler runs without a host.
var ErrNoScriptHost = errors.New("no script host configured")

// LogicKind tags the handler variant.
type LogicKind int

const (
	// LogicNone means the job type uses default progression.
	LogicNone LogicKind = iota
	// LogicNative is a Go function.
	LogicNative
	// LogicScripted is a handle resolved by a ScriptHost.
	LogicScripted
)

// HandlerContext is what a custom handler gets to work with.
// Agent is nil when the job has no assigned agent.
type HandlerContext struct {
	Store world.Store
	Job   *models.Job
	Agent *models.Agent
	Tick  uint64
}

// NativeHandler advances a job in place.
type NativeHandler func(HandlerContext) error

// ScriptHost runs scripted handlers by handle.
type ScriptHost interface {
	Run(handle string, hc HandlerContext) error
}

// Logic is the handler for a job type: either a native function or a script handle.
type Logic struct {
	Kind   LogicKind
	Native NativeHandler
	Script string
}

// Native wraps fn as Logic.
func Native(fn NativeHandler) Logic {
	return Logic{Kind: LogicNative, Native: fn}
}

// Scripted wraps a script handle as Logic.
func Scripted(handle string) Logic {
	return Logic{Kind: LogicScripted, Script: handle}
}

// NormalizeKey folds a job type name to its registry key: trimmed,
// lower-case, spaces replaced with underscores.
func NormalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Option configures a Registry.
type Option func(*Registry)

// WithScriptHost sets the host for scripted handlers.
func WithScriptHost(h ScriptHost) Option {
	return func(r *Registry) {
		r.host = h
	}
}

// Registry maps job type keys to definitions and handlers. It is safe for
// concurrent use so a Watcher can reload definitions while the engine runs.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]models.JobTypeDef
	logic map[string]Logic
	host  ScriptHost
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		defs:  make(map[string]models.JobTypeDef),
		logic: make(map[string]Logic),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a definition. A definition naming a script also
// registers scripted logic for the type unless native logic is already set.
func (r *Registry) Register(def models.JobTypeDef) error {
	key := NormalizeKey(def.Name)
	if key == "" {
		return fmt.Errorf("register job type: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[key] = def
	if def.Script != "" {
		if l, ok := r.logic[key]; !ok || l.Kind != LogicNative {
			r.logic[key] = Scripted(def.Script)
		}
	}
	return nil
}

// Replace swaps in a new set of definitions. Native logic is kept; scripted
// logic follows the new definitions.
func (r *Registry) Replace(defs []models.JobTypeDef) error {
	next := make(map[string]models.JobTypeDef, len(defs))
	for _, def := range defs {
		key := NormalizeKey(def.Name)
		if key == "" {
			return fmt.Errorf("replace job types: empty name")
		}
		next[key] = def
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, l := range r.logic {
		if l.Kind == LogicScripted {
			delete(r.logic, key)
		}
	}
	for key, def := range next {
		if def.Script == "" {
			continue
		}
		if _, ok := r.logic[key]; !ok {
			r.logic[key] = Scripted(def.Script)
		}
	}
	r.defs = next
	return nil
}

// SetLogic registers a handler for a job type.
func (r *Registry) SetLogic(name string, l Logic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.Kind == LogicNone {
		delete(r.logic, NormalizeKey(name))
		return
	}
	r.logic[NormalizeKey(name)] = l
}

// RegisterNative is shorthand for SetLogic(name, Native(fn)).
func (r *Registry) RegisterNative(name string, fn NativeHandler) {
	r.SetLogic(name, Native(fn))
}

// Definition returns the definition for a job type.
func (r *Registry) Definition(name string) (models.JobTypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[NormalizeKey(name)]
	return def, ok
}

// Logic returns the handler for a job type.
func (r *Registry) Logic(name string) (Logic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logic[NormalizeKey(name)]
	return l, ok
}

// Names returns the registered definition keys in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for k := range r.defs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Effects returns the effects configured for a job type.
func (r *Registry) Effects(name string) []models.Effect {
	def, ok := r.Definition(name)
	if !ok {
		return nil
	}
	return def.Effects
}

// RequiredProgress returns the definition's duration for a job type, or fallback.
func (r *Registry) RequiredProgress(name string, fallback float64) float64 {
	def, ok := r.Definition(name)
	if !ok || def.Duration == nil || *def.Duration <= 0 {
		return fallback
	}
	return *def.Duration
}

// Handle runs the custom handler for hc.Job's type. It returns false when the
// type has no handler so the caller applies default progression. Handler
// errors are returned unchanged.
func (r *Registry) Handle(hc HandlerContext) (bool, error) {
	l, ok := r.Logic(hc.Job.JobType)
	if !ok {
		return false, nil
	}
	switch l.Kind {
	case LogicNative:
		if l.Native == nil {
			return false, nil
		}
		return true, l.Native(hc)
	case LogicScripted:
		r.mu.RLock()
		host := r.host
		r.mu.RUnlock()
		if host == nil {
			return true, fmt.Errorf("job type %q: %w", hc.Job.JobType, ErrNoScriptHost)
		}
		return true, host.Run(l.Script, hc)
	default:
		return false, nil
	}
}
