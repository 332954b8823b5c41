package models

// EffectCondition gates an effect on world or entity state.
type EffectCondition struct {
	WorldState  *WorldStateCond  `json:"world_state,omitempty"`
	EntityState *EntityStateCond `json:"entity_state,omitempty"`
}

// Effect is a named side effect run against the store when a job finishes.
type Effect struct {
	Action    string           `json:"action"`
	Condition *EffectCondition `json:"condition,omitempty"`
	Params    map[string]any   `json:"params,omitempty"`
	// Effects are applied after this one, in order.
	Effects []Effect `json:"effects,omitempty"`
}

// JobTypeDef is the data half of a job type, as loaded from definition files.
type JobTypeDef struct {
	Name         string   `json:"name"`
	Category     string   `json:"category,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
	// Duration, when set, is the default required progress for jobs of this type.
	Duration *float64 `json:"duration,omitempty"`
	Effects  []Effect `json:"effects,omitempty"`
	// Script names a scripted handler; empty means default progression.
	Script string `json:"script,omitempty"`
}
