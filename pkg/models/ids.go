package models

import (
	"math"
	"strconv"
	"strings"
)

// EntityID identifies an entity in the world store.
type EntityID uint32

// String returns the decimal form used in dependency references.
func (id EntityID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseEntityID parses a decimal entity reference.
// Returns false for anything that is not a non-negative 32-bit integer.
func ParseEntityID(s string) (EntityID, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, false
	}
	return EntityID(n), true
}

// IDPtr returns a pointer to a copy of id.
func IDPtr(id EntityID) *EntityID {
	return &id
}

// Position is a continuous world position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Cell is a discrete map cell.
type Cell struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z,omitempty"`
}

// CellOf resolves the cell containing a position.
func CellOf(p Position) Cell {
	return Cell{
		X: int32(math.Floor(p.X)),
		Y: int32(math.Floor(p.Y)),
		Z: int32(math.Floor(p.Z)),
	}
}

// Position returns the position of the cell origin.
func (c Cell) Position() Position {
	return Position{X: float64(c.X), Y: float64(c.Y), Z: float64(c.Z)}
}

// ResourceAmount is one line of a resource list.
type ResourceAmount struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

// Resources is an ordered resource list.
type Resources []ResourceAmount

// Amount returns the summed amount of kind.
func (r Resources) Amount(kind string) int64 {
	var total int64
	for _, line := range r {
		if line.Kind == kind {
			total += line.Amount
		}
	}
	return total
}

// IsZero reports whether every line has a non-positive amount.
func (r Resources) IsZero() bool {
	for _, line := range r {
		if line.Amount > 0 {
			return false
		}
	}
	return true
}

// Kinds returns the distinct kinds in list order.
func (r Resources) Kinds() []string {
	seen := make(map[string]bool, len(r))
	kinds := make([]string, 0, len(r))
	for _, line := range r {
		if !seen[line.Kind] {
			seen[line.Kind] = true
			kinds = append(kinds, line.Kind)
		}
	}
	return kinds
}

// Covers reports whether r holds at least the amounts listed in need.
func (r Resources) Covers(need Resources) bool {
	for _, kind := range need.Kinds() {
		if r.Amount(kind) < need.Amount(kind) {
			return false
		}
	}
	return true
}

// Clone returns a copy of the list.
func (r Resources) Clone() Resources {
	if r == nil {
		return nil
	}
	out := make(Resources, len(r))
	copy(out, r)
	return out
}

// Merge adds the lines of other, combining by kind and keeping first-seen order.
func (r Resources) Merge(other Resources) Resources {
	out := r.Clone()
	for _, line := range other {
		found := false
		for i := range out {
			if out[i].Kind == line.Kind {
				out[i].Amount += line.Amount
				found = true
				break
			}
		}
		if !found {
			out = append(out, line)
		}
	}
	return out
}
