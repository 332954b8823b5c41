package world

import "github.com/ShayCichocki/jobforge/pkg/models"

// Path is a route between two cells. Cells excludes the start and ends at the goal.
type Path struct {
	Cells     []models.Cell
	TotalCost float64
}

// Pathfinder finds routes between cells.
type Pathfinder interface {
	FindPath(from, to models.Cell) (Path, bool)
}

// PathfinderFunc adapts a function to Pathfinder.
type PathfinderFunc func(from, to models.Cell) (Path, bool)

// FindPath calls f.
func (f PathfinderFunc) FindPath(from, to models.Cell) (Path, bool) {
	return f(from, to)
}

// GridPather walks an L-shaped route (X first, then Y, then Z) over unit-cost
// cells. It does not search around obstacles: a blocked cell on the route
// means there is no path.
type GridPather struct {
	world *World
}

// NewGridPather returns a pather that consults w for blocked cells.
func NewGridPather(w *World) *GridPather {
	return &GridPather{world: w}
}

// FindPath returns the straight route from one cell to another.
func (g *GridPather) FindPath(from, to models.Cell) (Path, bool) {
	if g.world.IsBlocked(to) {
		return Path{}, false
	}
	var cells []models.Cell
	cur := from
	for cur != to {
		switch {
		case cur.X != to.X:
			cur.X += step(cur.X, to.X)
		case cur.Y != to.Y:
			cur.Y += step(cur.Y, to.Y)
		default:
			cur.Z += step(cur.Z, to.Z)
		}
		if g.world.IsBlocked(cur) {
			return Path{}, false
		}
		cells = append(cells, cur)
	}
	return Path{Cells: cells, TotalCost: float64(len(cells))}, true
}

func step(from, to int32) int32 {
	if to > from {
		return 1
	}
	return -1
}
