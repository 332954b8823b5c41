package effects

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tidwall/sjson"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Built-in action names.
const (
	ActionModifyResource    = "ModifyResource"
	ActionSetComponentField = "SetComponentField"
)

// ModifyResourceParams are the params of ModifyResource.
// Stockpile defaults to the job's reserved stockpile, then the lowest id stockpile.
type ModifyResourceParams struct {
	Stockpile *models.EntityID `mapstructure:"stockpile"`
	Kind      string           `mapstructure:"kind"`
	Amount    int64            `mapstructure:"amount"`
}

// SetComponentFieldParams are the params of SetComponentField.
// Entity defaults to the job itself; Path uses sjson syntax.
type SetComponentFieldParams struct {
	Entity    *models.EntityID `mapstructure:"entity"`
	Component string           `mapstructure:"component"`
	Path      string           `mapstructure:"path"`
	Value     any              `mapstructure:"value"`
}

// RegisterBuiltins adds ModifyResource, its undo, and SetComponentField to r.
func RegisterBuiltins(r *Registry) {
	r.Register(ActionModifyResource, func(s world.Store, job *models.Job, e models.Effect) error {
		return modifyResource(s, job, e, 1)
	})
	r.RegisterUndo(ActionModifyResource, func(s world.Store, job *models.Job, e models.Effect) error {
		return modifyResource(s, job, e, -1)
	})
	r.Register(ActionSetComponentField, setComponentField)
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

func modifyResource(s world.Store, job *models.Job, e models.Effect, sign int64) error {
	var p ModifyResourceParams
	if err := decodeParams(e.Params, &p); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	if p.Kind == "" {
		return fmt.Errorf("missing kind")
	}
	id, ok := targetStockpile(s, job, p.Stockpile)
	if !ok {
		return fmt.Errorf("no stockpile for %s", p.Kind)
	}
	sp, ok := s.Stockpile(id)
	if !ok {
		return fmt.Errorf("stockpile %d not found", id)
	}
	sp.Add(p.Kind, sign*p.Amount)
	return nil
}

func targetStockpile(s world.StockpileStore, job *models.Job, explicit *models.EntityID) (models.EntityID, bool) {
	if explicit != nil {
		return *explicit, true
	}
	if job.ReservedStockpile != nil {
		return *job.ReservedStockpile, true
	}
	ids := s.StockpileIDs()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

func setComponentField(s world.Store, job *models.Job, e models.Effect) error {
	var p SetComponentFieldParams
	if err := decodeParams(e.Params, &p); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	if p.Component == "" || p.Path == "" {
		return fmt.Errorf("component and path are required")
	}
	id := job.ID
	if p.Entity != nil {
		id = *p.Entity
	}
	doc, ok := s.Component(id, p.Component)
	if !ok || len(doc) == 0 {
		doc = []byte("{}")
	}
	next, err := sjson.SetBytes(doc, p.Path, p.Value)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", p.Component, p.Path, err)
	}
	return s.SetComponent(id, p.Component, next)
}
