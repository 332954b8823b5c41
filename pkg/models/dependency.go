package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DependencyKind tags the shape of a dependency expression node.
type DependencyKind int

const (
	// DependencyInvalid is the zero value; evaluating it is an error.
	DependencyInvalid DependencyKind = iota
	// DependencyRef references another job by id.
	DependencyRef
	// DependencyAnd is a bare array; every term must hold.
	DependencyAnd
	// DependencyAllOf is {"all_of": [...]}.
	DependencyAllOf
	// DependencyAnyOf is {"any_of": [...]}.
	DependencyAnyOf
	// DependencyNot is {"not": [...]}.
	DependencyNot
	// DependencyWorldState is {"world_state": {...}}.
	DependencyWorldState
	// DependencyEntityState is {"entity_state": {...}}.
	DependencyEntityState
)

// String returns the JSON key of the node kind.
func (k DependencyKind) String() string {
	switch k {
	case DependencyRef:
		return "ref"
	case DependencyAnd:
		return "and"
	case DependencyAllOf:
		return "all_of"
	case DependencyAnyOf:
		return "any_of"
	case DependencyNot:
		return "not"
	case DependencyWorldState:
		return "world_state"
	case DependencyEntityState:
		return "entity_state"
	default:
		return "invalid"
	}
}

// Bounds is an inclusive numeric range; a nil bound is open.
type Bounds struct {
	Gte *float64 `json:"gte,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v float64) bool {
	if b.Gte != nil && v < *b.Gte {
		return false
	}
	if b.Lte != nil && v > *b.Lte {
		return false
	}
	return true
}

// WorldStateCond compares a global resource amount against bounds.
type WorldStateCond struct {
	Resource string `json:"resource"`
	Bounds
}

// EntityStateCond compares a numeric component field against bounds.
type EntityStateCond struct {
	Entity    EntityID `json:"entity"`
	Component string   `json:"component"`
	Field     string   `json:"field"`
	Bounds
}

// DependencyExpr is a node of the dependency predicate grammar.
//
// JSON forms:
//
//	"12"                         job reference
//	["12", {...}]                implicit AND
//	{"all_of": [...]}            {"any_of": [...]}    {"not": [...]}
//	{"world_state": {"resource": "wood", "gte": 5}}
//	{"entity_state": {"entity": 3, "component": "Health", "field": "hp", "lte": 10}}
type DependencyExpr struct {
	Kind   DependencyKind
	Ref    string
	Terms  []DependencyExpr
	World  *WorldStateCond
	Entity *EntityStateCond
}

// Ref builds a job reference from a raw string.
func Ref(s string) DependencyExpr {
	return DependencyExpr{Kind: DependencyRef, Ref: s}
}

// RefID builds a job reference to id.
func RefID(id EntityID) DependencyExpr {
	return Ref(id.String())
}

// DependsOn builds an implicit AND of job references.
func DependsOn(ids ...EntityID) *DependencyExpr {
	terms := make([]DependencyExpr, 0, len(ids))
	for _, id := range ids {
		terms = append(terms, RefID(id))
	}
	return &DependencyExpr{Kind: DependencyAnd, Terms: terms}
}

// And builds an implicit AND node.
func And(terms ...DependencyExpr) DependencyExpr {
	return DependencyExpr{Kind: DependencyAnd, Terms: terms}
}

// AllOf builds an all_of node.
func AllOf(terms ...DependencyExpr) DependencyExpr {
	return DependencyExpr{Kind: DependencyAllOf, Terms: terms}
}

// AnyOf builds an any_of node.
func AnyOf(terms ...DependencyExpr) DependencyExpr {
	return DependencyExpr{Kind: DependencyAnyOf, Terms: terms}
}

// Not builds a not node.
func Not(terms ...DependencyExpr) DependencyExpr {
	return DependencyExpr{Kind: DependencyNot, Terms: terms}
}

// WorldState builds a world_state node.
func WorldState(c WorldStateCond) DependencyExpr {
	return DependencyExpr{Kind: DependencyWorldState, World: &c}
}

// EntityState builds an entity_state node.
func EntityState(c EntityStateCond) DependencyExpr {
	return DependencyExpr{Kind: DependencyEntityState, Entity: &c}
}

// Ptr returns a pointer to a copy of e.
func (e DependencyExpr) Ptr() *DependencyExpr {
	return &e
}

type dependencyObject struct {
	AllOf       []DependencyExpr `json:"all_of,omitempty"`
	AnyOf       []DependencyExpr `json:"any_of,omitempty"`
	Not         []DependencyExpr `json:"not,omitempty"`
	WorldState  *WorldStateCond  `json:"world_state,omitempty"`
	EntityState *EntityStateCond `json:"entity_state,omitempty"`
}

// UnmarshalJSON decodes the string / array / object forms.
func (e *DependencyExpr) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("dependency expression: empty input")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("dependency reference: %w", err)
		}
		*e = Ref(s)
		return nil
	case '[':
		var terms []DependencyExpr
		if err := json.Unmarshal(data, &terms); err != nil {
			return err
		}
		*e = And(terms...)
		return nil
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("dependency object: %w", err)
		}
		var obj dependencyObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("dependency object: %w", err)
		}
		// Key precedence when several are present: all_of, any_of, not, world_state, entity_state.
		switch {
		case raw["all_of"] != nil:
			*e = AllOf(obj.AllOf...)
		case raw["any_of"] != nil:
			*e = AnyOf(obj.AnyOf...)
		case raw["not"] != nil:
			*e = Not(obj.Not...)
		case obj.WorldState != nil:
			*e = WorldState(*obj.WorldState)
		case obj.EntityState != nil:
			*e = EntityState(*obj.EntityState)
		default:
			return fmt.Errorf("dependency object: no recognised key in %s", string(data))
		}
		return nil
	case 'n':
		*e = DependencyExpr{}
		return nil
	default:
		return fmt.Errorf("dependency expression: unsupported JSON %s", string(data))
	}
}

// MarshalJSON encodes the node back to its JSON form.
func (e DependencyExpr) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case DependencyRef:
		return json.Marshal(e.Ref)
	case DependencyAnd:
		terms := e.Terms
		if terms == nil {
			terms = []DependencyExpr{}
		}
		return json.Marshal(terms)
	case DependencyAllOf:
		return json.Marshal(map[string][]DependencyExpr{"all_of": nonNil(e.Terms)})
	case DependencyAnyOf:
		return json.Marshal(map[string][]DependencyExpr{"any_of": nonNil(e.Terms)})
	case DependencyNot:
		return json.Marshal(map[string][]DependencyExpr{"not": nonNil(e.Terms)})
	case DependencyWorldState:
		return json.Marshal(dependencyObject{WorldState: e.World})
	case DependencyEntityState:
		return json.Marshal(dependencyObject{EntityState: e.Entity})
	default:
		return []byte("null"), nil
	}
}

func nonNil(terms []DependencyExpr) []DependencyExpr {
	if terms == nil {
		return []DependencyExpr{}
	}
	return terms
}
