package models

// Stockpile holds reservable resource quantities.
type Stockpile struct {
	ID        EntityID         `json:"id"`
	Resources map[string]int64 `json:"resources"`
}

// NewStockpile returns a stockpile seeded with resources.
func NewStockpile(id EntityID, resources map[string]int64) Stockpile {
	r := make(map[string]int64, len(resources))
	for k, v := range resources {
		r[k] = v
	}
	return Stockpile{ID: id, Resources: r}
}

// Amount returns the stock of kind.
func (s *Stockpile) Amount(kind string) int64 {
	return s.Resources[kind]
}

// Add adjusts the stock of kind by delta, clamping at zero.
func (s *Stockpile) Add(kind string, delta int64) {
	if s.Resources == nil {
		s.Resources = make(map[string]int64)
	}
	v := s.Resources[kind] + delta
	if v < 0 {
		v = 0
	}
	s.Resources[kind] = v
}

// Item is a loose pile of resources lying in the world.
type Item struct {
	ID       EntityID `json:"id"`
	Kind     string   `json:"kind"`
	Amount   int64    `json:"amount"`
	Loose    bool     `json:"loose"`
	Position Position `json:"position"`
}

// ResourceDefinition carries per-unit physical properties of a resource kind.
type ResourceDefinition struct {
	Kind       string  `json:"kind"`
	UnitWeight float64 `json:"unit_weight,omitempty"`
	UnitVolume float64 `json:"unit_volume,omitempty"`
}

// Units returns weight and volume per unit, defaulting each to 1.0.
func (d ResourceDefinition) Units() (weight, volume float64) {
	weight, volume = d.UnitWeight, d.UnitVolume
	if weight <= 0 {
		weight = 1.0
	}
	if volume <= 0 {
		volume = 1.0
	}
	return weight, volume
}
