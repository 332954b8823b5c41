package orchestrator

import (
	"sync/atomic"

	"github.com/ShayCichocki/jobforge/internal/effects"
	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/internal/jobtypes"
)

// Context is the scheduler state shared across ticks: the tick counter, the
// event bus and the handler registries. It is passed by reference into the
// orchestrator instead of living in globals.
type Context struct {
	tick atomic.Uint64

	// Bus carries lifecycle events and resource_shortage reports.
	Bus *events.Bus
	// JobTypes resolves custom handlers, effect lists and durations per job type.
	JobTypes *jobtypes.Registry
	// Effects applies and rolls back job effects.
	Effects *effects.Processor
}

// NewContext creates a Context with a fresh bus, an empty job type registry
// and an effect processor with the built-in actions registered.
func NewContext() *Context {
	reg := effects.NewRegistry()
	effects.RegisterBuiltins(reg)
	return &Context{
		Bus:      events.NewBus(),
		JobTypes: jobtypes.NewRegistry(),
		Effects:  effects.NewProcessor(reg),
	}
}

// Tick returns the last tick that ran.
func (c *Context) Tick() uint64 {
	return c.tick.Load()
}

// SetTick sets the tick counter, used when resuming a saved world.
func (c *Context) SetTick(t uint64) {
	c.tick.Store(t)
}

// advance moves to the next tick and returns it.
func (c *Context) advance() uint64 {
	return c.tick.Add(1)
}
