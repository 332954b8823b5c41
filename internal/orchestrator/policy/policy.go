// Package policy defines configurable tunables for orchestrator behavior.
// This centralizes the magic numbers of scheduling, aging, assignment and
// progression so they can be configured and tested.
package policy

import (
	"github.com/ShayCichocki/jobforge/internal/assign"
	"github.com/ShayCichocki/jobforge/internal/board"
	"github.com/ShayCichocki/jobforge/internal/phase"
)

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	// Scheduling policies
	Scheduling SchedulingPolicy

	// Aging policies
	Aging AgingPolicy

	// Assignment policies
	Assignment AssignmentPolicy

	// Progress policies
	Progress ProgressPolicy

	// Loop policies
	Loop LoopPolicy
}

// SchedulingPolicy controls job board ordering.
type SchedulingPolicy struct {
	// Policy is the board ordering: "priority", "fifo" or "lifo".
	Policy string
}

// AgingPolicy controls effective priority growth.
type AgingPolicy struct {
	// Factor is the number of ticks per point of age bonus. Zero disables aging.
	Factor uint64

	// ShortageBoost is added to jobs needing a resource reported short.
	ShortageBoost int64
}

// AssignmentPolicy controls agent/job matching.
type AssignmentPolicy struct {
	// SpecializationBonus is added to utility when an agent specializes in the job category.
	SpecializationBonus float64
}

// ProgressPolicy controls how fast work advances.
type ProgressPolicy struct {
	BaseRate         float64
	MinIncrement     float64
	RequiredProgress float64
}

// LoopPolicy controls run loop behavior.
type LoopPolicy struct {
	// TicksPerSecond paces the runner. Zero runs unpaced.
	TicksPerSecond float64

	// SnapshotEvery is the tick interval between world snapshots. Zero disables snapshots.
	SnapshotEvery uint64
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Scheduling: SchedulingPolicy{
			Policy: "priority",
		},
		Aging: AgingPolicy{
			Factor:        10,
			ShortageBoost: 100,
		},
		Assignment: AssignmentPolicy{
			SpecializationBonus: assign.DefaultSpecializationBonus,
		},
		Progress: ProgressPolicy{
			BaseRate:         1.0,
			MinIncrement:     0.1,
			RequiredProgress: 3.0,
		},
		Loop: LoopPolicy{
			TicksPerSecond: 0,
			SnapshotEvery:  0,
		},
	}
}

// Validate checks that policy values are within acceptable ranges.
// Out-of-range numbers are reset to their defaults; an unknown scheduling
// policy is an error.
func (c *Config) Validate() error {
	if c.Scheduling.Policy == "" {
		c.Scheduling.Policy = "priority"
	}
	if _, err := board.PolicyByName(c.Scheduling.Policy); err != nil {
		return err
	}
	if c.Aging.ShortageBoost < 0 {
		c.Aging.ShortageBoost = 100
	}
	if c.Assignment.SpecializationBonus < 0 {
		c.Assignment.SpecializationBonus = assign.DefaultSpecializationBonus
	}
	if c.Progress.BaseRate <= 0 {
		c.Progress.BaseRate = 1.0
	}
	if c.Progress.MinIncrement <= 0 {
		c.Progress.MinIncrement = 0.1
	}
	if c.Progress.RequiredProgress <= 0 {
		c.Progress.RequiredProgress = 3.0
	}
	if c.Loop.TicksPerSecond < 0 {
		c.Loop.TicksPerSecond = 0
	}
	return nil
}

// AgingRule returns the board aging tunables.
func (c *Config) AgingRule() board.Aging {
	return board.Aging{Factor: c.Aging.Factor, ShortageBoost: c.Aging.ShortageBoost}
}

// PhaseConfig returns the state machine tunables.
func (c *Config) PhaseConfig() phase.Config {
	return phase.Config{
		BaseRate:         c.Progress.BaseRate,
		MinIncrement:     c.Progress.MinIncrement,
		RequiredProgress: c.Progress.RequiredProgress,
	}
}
