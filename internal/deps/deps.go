// Package deps evaluates job dependency expressions against the world.
//
// A bare job reference is satisfied once the referenced job is complete. Inside
// a "not" clause a reference is forbidden once the job reached any terminal
// state (complete, failed or cancelled), and the clause holds when none of its
// entries are forbidden. A reference to a job that does not exist never
// satisfies directly and never forbids inside "not".
package deps

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/jobforge/pkg/models"
)

// ErrMalformedExpression indicates a dependency node that cannot be evaluated.
var ErrMalformedExpression = errors.New("malformed dependency expression")

// Store is the part of the world the evaluator reads.
type Store interface {
	Job(id models.EntityID) (*models.Job, bool)
	GlobalResourceAmount(kind string) float64
	Component(id models.EntityID, name string) ([]byte, bool)
}

// Satisfied reports whether every dependency of job holds.
// A job without dependencies is always satisfied.
func Satisfied(s Store, job *models.Job) (bool, error) {
	if job.Dependencies == nil {
		return true, nil
	}
	ok, err := satisfied(s, *job.Dependencies)
	if err != nil {
		return false, fmt.Errorf("job %d: %w", job.ID, err)
	}
	return ok, nil
}

// Evaluate reports whether expr holds in direct context.
func Evaluate(s Store, expr models.DependencyExpr) (bool, error) {
	return satisfied(s, expr)
}

func satisfied(s Store, e models.DependencyExpr) (bool, error) {
	switch e.Kind {
	case models.DependencyRef:
		j, ok := lookup(s, e.Ref)
		return ok && j.State == models.JobComplete, nil
	case models.DependencyAnd, models.DependencyAllOf:
		for _, t := range e.Terms {
			ok, err := satisfied(s, t)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case models.DependencyAnyOf:
		for _, t := range e.Terms {
			ok, err := satisfied(s, t)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case models.DependencyNot:
		for _, t := range e.Terms {
			hit, err := forbidden(s, t)
			if err != nil {
				return false, err
			}
			if hit {
				return false, nil
			}
		}
		return true, nil
	case models.DependencyWorldState:
		return worldState(s, e.World)
	case models.DependencyEntityState:
		return entityState(s, e.Entity)
	default:
		return false, fmt.Errorf("%w: node kind %s", ErrMalformedExpression, e.Kind)
	}
}

// forbidden evaluates a node inside a "not" clause, where references mean
// "has reached a terminal state".
func forbidden(s Store, e models.DependencyExpr) (bool, error) {
	switch e.Kind {
	case models.DependencyRef:
		j, ok := lookup(s, e.Ref)
		return ok && j.State.IsTerminal(), nil
	case models.DependencyAnd, models.DependencyAllOf:
		for _, t := range e.Terms {
			hit, err := forbidden(s, t)
			if err != nil || !hit {
				return false, err
			}
		}
		return true, nil
	case models.DependencyAnyOf:
		for _, t := range e.Terms {
			hit, err := forbidden(s, t)
			if err != nil {
				return false, err
			}
			if hit {
				return true, nil
			}
		}
		return false, nil
	case models.DependencyNot:
		for _, t := range e.Terms {
			hit, err := forbidden(s, t)
			if err != nil {
				return false, err
			}
			if hit {
				return false, nil
			}
		}
		return true, nil
	case models.DependencyWorldState:
		return worldState(s, e.World)
	case models.DependencyEntityState:
		return entityState(s, e.Entity)
	default:
		return false, fmt.Errorf("%w: node kind %s", ErrMalformedExpression, e.Kind)
	}
}

// FailureState returns the first failed or cancelled referent of job's
// dependencies, in expression order. References under "not" are ignored.
func FailureState(s Store, job *models.Job) (models.JobState, bool, error) {
	if job.Dependencies == nil {
		return "", false, nil
	}
	state, ok, err := failureState(s, *job.Dependencies)
	if err != nil {
		return "", false, fmt.Errorf("job %d: %w", job.ID, err)
	}
	return state, ok, nil
}

func failureState(s Store, e models.DependencyExpr) (models.JobState, bool, error) {
	switch e.Kind {
	case models.DependencyRef:
		if j, ok := lookup(s, e.Ref); ok && j.State.IsFailure() {
			return j.State, true, nil
		}
		return "", false, nil
	case models.DependencyAnd, models.DependencyAllOf, models.DependencyAnyOf:
		for _, t := range e.Terms {
			state, ok, err := failureState(s, t)
			if err != nil || ok {
				return state, ok, err
			}
		}
		return "", false, nil
	case models.DependencyNot, models.DependencyWorldState, models.DependencyEntityState:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("%w: node kind %s", ErrMalformedExpression, e.Kind)
	}
}

// References returns the distinct job ids named anywhere in expr, ascending.
// References that are not valid entity ids are skipped.
func References(expr *models.DependencyExpr) []models.EntityID {
	if expr == nil {
		return nil
	}
	seen := make(map[models.EntityID]bool)
	var walk func(e models.DependencyExpr)
	walk = func(e models.DependencyExpr) {
		if e.Kind == models.DependencyRef {
			if id, ok := models.ParseEntityID(e.Ref); ok {
				seen[id] = true
			}
			return
		}
		for _, t := range e.Terms {
			walk(t)
		}
	}
	walk(*expr)

	ids := make([]models.EntityID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WorldStateHolds reports whether the global amount of c.Resource lies within its bounds.
func WorldStateHolds(s Store, c *models.WorldStateCond) (bool, error) {
	return worldState(s, c)
}

// EntityStateHolds reports whether the named component field lies within its bounds.
func EntityStateHolds(s Store, c *models.EntityStateCond) (bool, error) {
	return entityState(s, c)
}

func worldState(s Store, c *models.WorldStateCond) (bool, error) {
	if c == nil || c.Resource == "" {
		return false, fmt.Errorf("%w: world_state needs a resource", ErrMalformedExpression)
	}
	return c.Contains(s.GlobalResourceAmount(c.Resource)), nil
}

// entityState reads the field with gjson path syntax, so nested fields like
// "stats.hp" work. A missing or non-numeric field does not hold.
func entityState(s Store, c *models.EntityStateCond) (bool, error) {
	if c == nil || c.Component == "" || c.Field == "" {
		return false, fmt.Errorf("%w: entity_state needs component and field", ErrMalformedExpression)
	}
	doc, ok := s.Component(c.Entity, c.Component)
	if !ok {
		return false, nil
	}
	v := gjson.GetBytes(doc, c.Field)
	if !v.Exists() || v.Type != gjson.Number {
		return false, nil
	}
	return c.Contains(v.Float()), nil
}

func lookup(s Store, ref string) (*models.Job, bool) {
	id, ok := models.ParseEntityID(ref)
	if !ok {
		return nil, false
	}
	return s.Job(id)
}
