package effects

import (
	"errors"
	"reflect"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

func recorder(log *[]string, name string) Handler {
	return func(world.Store, *models.Job, models.Effect) error {
		*log = append(*log, name)
		return nil
	}
}

func gte(v float64) *float64 { return &v }

func TestProcessor_ApplyNextIsIncremental(t *testing.T) {
	var log []string
	r := NewRegistry()
	r.Register("a", recorder(&log, "a"))
	r.Register("b", recorder(&log, "b"))
	r.Register("c", recorder(&log, "c"))

	list := []models.Effect{
		{Action: "a", Effects: []models.Effect{{Action: "c"}}},
		{Action: "b"},
	}
	w := world.New()
	job := models.NewJob("work", 0)
	p := NewProcessor(r)

	applied, err := p.ApplyNext(w, &job, list)
	if err != nil || !applied {
		t.Fatalf("first ApplyNext = %v, %v", applied, err)
	}
	if !reflect.DeepEqual(log, []string{"a", "c"}) {
		t.Errorf("after first tick log = %v", log)
	}

	if applied, _ := p.ApplyNext(w, &job, list); !applied {
		t.Fatal("second ApplyNext applied nothing")
	}
	if applied, _ := p.ApplyNext(w, &job, list); applied {
		t.Error("third ApplyNext should have nothing left")
	}
	if !reflect.DeepEqual(job.AppliedEffects, []int{0, 1}) {
		t.Errorf("AppliedEffects = %v", job.AppliedEffects)
	}
}

func TestProcessor_ConditionGates(t *testing.T) {
	var log []string
	r := NewRegistry()
	r.Register("grow", recorder(&log, "grow"))
	r.Register("other", recorder(&log, "other"))

	list := []models.Effect{
		{Action: "grow", Condition: &models.EffectCondition{
			WorldState: &models.WorldStateCond{Resource: "water", Bounds: models.Bounds{Gte: gte(5)}},
		}},
		{Action: "other", Condition: &models.EffectCondition{}},
	}

	w := world.New()
	w.PutStockpile(models.NewStockpile(1, map[string]int64{"water": 2}))
	job := models.NewJob("farm", 0)
	p := NewProcessor(r)

	if n, err := p.Flush(w, &job, list); err != nil || n != 0 {
		t.Fatalf("Flush with dry stock = %d, %v", n, err)
	}

	sp, _ := w.Stockpile(1)
	sp.Add("water", 10)
	if n, err := p.Flush(w, &job, list); err != nil || n != 1 {
		t.Fatalf("Flush with water = %d, %v", n, err)
	}
	if !reflect.DeepEqual(log, []string{"grow"}) {
		t.Errorf("log = %v, empty condition must not apply", log)
	}
}

func TestProcessor_RollbackReverseOrder(t *testing.T) {
	var log []string
	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		r.Register(name, recorder(&log, name))
		r.RegisterUndo(name, recorder(&log, "undo-"+name))
	}
	list := []models.Effect{
		{Action: "a", Effects: []models.Effect{{Action: "c"}}},
		{Action: "b"},
		{Action: "nothing"},
	}

	w := world.New()
	job := models.NewJob("work", 0)
	p := NewProcessor(r)
	if _, err := p.Flush(w, &job, list); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	log = nil

	n, err := p.Rollback(w, &job, list)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if n != 3 {
		t.Errorf("Rollback() = %d, want 3", n)
	}
	want := []string{"undo-b", "undo-c", "undo-a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("undo order = %v, want %v", log, want)
	}
	if len(job.AppliedEffects) != 0 {
		t.Errorf("AppliedEffects = %v after rollback", job.AppliedEffects)
	}
}

func TestProcessor_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register("bad", func(world.Store, *models.Job, models.Effect) error { return boom })

	job := models.NewJob("work", 0)
	_, err := NewProcessor(r).ApplyNext(world.New(), &job, []models.Effect{{Action: "bad"}})
	if !errors.Is(err, boom) {
		t.Errorf("ApplyNext error = %v, want boom", err)
	}
	if len(job.AppliedEffects) != 0 {
		t.Error("failed effect recorded as applied")
	}
}

func TestBuiltins_ModifyResource(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	p := NewProcessor(r)

	w := world.New()
	w.PutStockpile(models.NewStockpile(3, map[string]int64{"plank": 1}))
	w.PutStockpile(models.NewStockpile(4, nil))

	job := models.NewJob("saw", 0)
	list := []models.Effect{
		{Action: ActionModifyResource, Params: map[string]any{"kind": "plank", "amount": 4.0}},
		{Action: ActionModifyResource, Params: map[string]any{"kind": "dust", "amount": 2, "stockpile": 4.0}},
	}
	if _, err := p.Flush(w, &job, list); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	sp3, _ := w.Stockpile(3)
	sp4, _ := w.Stockpile(4)
	if sp3.Amount("plank") != 5 || sp4.Amount("dust") != 2 {
		t.Errorf("after apply plank=%d dust=%d", sp3.Amount("plank"), sp4.Amount("dust"))
	}

	if _, err := p.Rollback(w, &job, list); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if sp3.Amount("plank") != 1 || sp4.Amount("dust") != 0 {
		t.Errorf("after rollback plank=%d dust=%d", sp3.Amount("plank"), sp4.Amount("dust"))
	}
}

func TestBuiltins_ModifyResourceBadParams(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	w := world.New()
	w.PutStockpile(models.NewStockpile(1, nil))
	job := models.NewJob("saw", 0)

	_, err := NewProcessor(r).ApplyNext(w, &job, []models.Effect{
		{Action: ActionModifyResource, Params: map[string]any{"kind": "plank", "colour": "red"}},
	})
	if err == nil {
		t.Error("unknown param should fail")
	}
}

func TestBuiltins_SetComponentField(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	w := world.New()
	tile := w.Spawn()
	if err := w.SetComponent(tile, "Terrain", []byte(`{"kind":"rock"}`)); err != nil {
		t.Fatal(err)
	}
	job := models.NewJob("dig", 0)
	list := []models.Effect{{Action: ActionSetComponentField, Params: map[string]any{
		"entity":    float64(tile),
		"component": "Terrain",
		"path":      "kind",
		"value":     "floor",
	}}}
	if _, err := NewProcessor(r).Flush(w, &job, list); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	doc, _ := w.Component(tile, "Terrain")
	if got := gjson.GetBytes(doc, "kind").String(); got != "floor" {
		t.Errorf("Terrain.kind = %q, want floor", got)
	}
}
