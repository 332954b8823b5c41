package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/jobforge/pkg/models"
)

// ErrUnknownPolicy is returned for an unrecognised policy name.
var ErrUnknownPolicy = errors.New("unknown scheduling policy")

// Entry is the sort key of a board candidate.
type Entry struct {
	ID               models.EntityID
	Priority         int64
	AssignmentCount  uint64
	LastAssignedTick uint64
	CreatedAt        uint64
}

func entryOf(j *models.Job) Entry {
	return Entry{
		ID:               j.ID,
		Priority:         j.EffectivePriority,
		AssignmentCount:  j.AssignmentCount,
		LastAssignedTick: j.LastAssignedTick,
		CreatedAt:        j.CreatedTick(),
	}
}

// SchedulingPolicy orders board candidates.
type SchedulingPolicy interface {
	Name() string
	// Less reports whether a should be offered before b.
	Less(a, b Entry) bool
}

// PriorityPolicy offers higher effective priority first, then jobs assigned
// fewer times, then jobs assigned longest ago, then lower ids.
type PriorityPolicy struct{}

// Name returns "priority".
func (PriorityPolicy) Name() string { return "priority" }

// Less implements SchedulingPolicy.
func (PriorityPolicy) Less(a, b Entry) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.AssignmentCount != b.AssignmentCount {
		return a.AssignmentCount < b.AssignmentCount
	}
	if a.LastAssignedTick != b.LastAssignedTick {
		return a.LastAssignedTick < b.LastAssignedTick
	}
	return a.ID < b.ID
}

// FIFOPolicy offers the oldest job first.
type FIFOPolicy struct{}

// Name returns "fifo".
func (FIFOPolicy) Name() string { return "fifo" }

// Less implements SchedulingPolicy.
func (FIFOPolicy) Less(a, b Entry) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}

// LIFOPolicy offers the newest job first.
type LIFOPolicy struct{}

// Name returns "lifo".
func (LIFOPolicy) Name() string { return "lifo" }

// Less implements SchedulingPolicy.
func (LIFOPolicy) Less(a, b Entry) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID > b.ID
}

// PolicyByName resolves "priority", "fifo" or "lifo" (case-insensitive).
func PolicyByName(name string) (SchedulingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "priority":
		return PriorityPolicy{}, nil
	case "fifo":
		return FIFOPolicy{}, nil
	case "lifo":
		return LIFOPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}
