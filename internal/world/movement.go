package world

import "github.com/ShayCichocki/jobforge/pkg/models"

// StepMovement advances every agent one cell along its move path.
// Returns the number of agents that moved.
func (w *World) StepMovement() int {
	moved := 0
	for _, id := range w.AgentIDs() {
		a := w.agents[id]
		if len(a.MovePath) == 0 {
			continue
		}
		next := a.MovePath[0]
		a.MovePath = a.MovePath[1:]
		if len(a.MovePath) == 0 {
			a.MovePath = nil
		}
		w.SetPosition(id, next.Position())
		moved++
	}
	return moved
}

// CellOfEntity resolves the cell an entity stands on.
func CellOfEntity(p PositionStore, id models.EntityID) (models.Cell, bool) {
	pos, ok := p.Position(id)
	if !ok {
		return models.Cell{}, false
	}
	return models.CellOf(pos), true
}
