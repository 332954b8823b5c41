package jobtypes

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/jobforge/internal/world"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

type recordingHost struct {
	handles []string
}

func (h *recordingHost) Run(handle string, hc HandlerContext) error {
	h.handles = append(h.handles, handle)
	hc.Job.Progress += 10
	return nil
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Build Wall", "build_wall"},
		{"  chop  ", "chop"},
		{"HAUL", "haul"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistry_Handle(t *testing.T) {
	host := &recordingHost{}
	r := NewRegistry(WithScriptHost(host))

	calls := 0
	r.RegisterNative("Dig Hole", func(hc HandlerContext) error {
		calls++
		hc.Job.Progress = 1
		return nil
	})
	if err := r.Register(models.JobTypeDef{Name: "paint", Script: "paint.lua"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	w := world.New()
	dig := models.NewJob("dig_hole", 0)
	handled, err := r.Handle(HandlerContext{Store: w, Job: &dig})
	if err != nil || !handled || calls != 1 || dig.Progress != 1 {
		t.Errorf("native: handled=%v err=%v calls=%d progress=%v", handled, err, calls, dig.Progress)
	}

	paint := models.NewJob("Paint", 0)
	handled, err = r.Handle(HandlerContext{Store: w, Job: &paint})
	if err != nil || !handled || paint.Progress != 10 {
		t.Errorf("scripted: handled=%v err=%v progress=%v", handled, err, paint.Progress)
	}
	if len(host.handles) != 1 || host.handles[0] != "paint.lua" {
		t.Errorf("host handles = %v", host.handles)
	}

	plain := models.NewJob("sweep", 0)
	if handled, err := r.Handle(HandlerContext{Store: w, Job: &plain}); handled || err != nil {
		t.Errorf("default: handled=%v err=%v", handled, err)
	}
}

func TestRegistry_HandleErrors(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.RegisterNative("explode", func(HandlerContext) error { return boom })
	r.SetLogic("paint", Scripted("paint.lua"))

	job := models.NewJob("explode", 0)
	if _, err := r.Handle(HandlerContext{Job: &job}); !errors.Is(err, boom) {
		t.Errorf("native error = %v, want boom", err)
	}
	job = models.NewJob("paint", 0)
	if _, err := r.Handle(HandlerContext{Job: &job}); !errors.Is(err, ErrNoScriptHost) {
		t.Errorf("scripted error = %v, want ErrNoScriptHost", err)
	}
}

func TestRegistry_RequiredProgress(t *testing.T) {
	r := NewRegistry()
	d := 7.5
	_ = r.Register(models.JobTypeDef{Name: "forge", Duration: &d})
	_ = r.Register(models.JobTypeDef{Name: "sweep"})

	if got := r.RequiredProgress("Forge", 3); got != 7.5 {
		t.Errorf("RequiredProgress(forge) = %v", got)
	}
	if got := r.RequiredProgress("sweep", 3); got != 3 {
		t.Errorf("RequiredProgress(sweep) = %v", got)
	}
	if got := r.RequiredProgress("unknown", 3); got != 3 {
		t.Errorf("RequiredProgress(unknown) = %v", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "build.yaml"), `
name: Build Wall
category: construction
duration: 5
effects:
  - action: ModifyResource
    params:
      kind: wall
      amount: 1
`)
	writeFile(t, filepath.Join(dir, "nested", "more.json"), `[
  {"name": "chop", "category": "forestry"},
  {"name": "paint", "script": "paint.lua"}
]`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	r := NewRegistry()
	n, err := r.LoadDir(dir, "")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 3 {
		t.Fatalf("loaded %d definitions, want 3", n)
	}
	want := []string{"build_wall", "chop", "paint"}
	got := r.Names()
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}

	def, ok := r.Definition("build wall")
	if !ok || def.Category != "construction" || len(def.Effects) != 1 || def.Effects[0].Params["kind"] != "wall" {
		t.Errorf("build wall = %+v", def)
	}
	if l, ok := r.Logic("paint"); !ok || l.Kind != LogicScripted {
		t.Errorf("paint logic = %+v, %v", l, ok)
	}
}

func TestLoadDir_BadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.json"), `{"name": `)
	if _, err := LoadDir(dir, ""); err == nil {
		t.Error("LoadDir should fail on a malformed file")
	}
	if _, err := LoadDir(dir, "[invalid"); err == nil {
		t.Error("LoadDir should reject an invalid pattern")
	}
}

func TestRegistry_ReplaceKeepsNativeLogic(t *testing.T) {
	r := NewRegistry()
	r.RegisterNative("dig", func(HandlerContext) error { return nil })
	_ = r.Register(models.JobTypeDef{Name: "paint", Script: "old.lua"})

	if err := r.Replace([]models.JobTypeDef{{Name: "dig"}, {Name: "glaze", Script: "glaze.lua"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if l, ok := r.Logic("dig"); !ok || l.Kind != LogicNative {
		t.Errorf("dig logic = %+v", l)
	}
	if _, ok := r.Logic("paint"); ok {
		t.Error("stale scripted logic survived Replace")
	}
	if l, ok := r.Logic("glaze"); !ok || l.Script != "glaze.lua" {
		t.Errorf("glaze logic = %+v", l)
	}
}

func TestWatch_Reloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "name: chop\n")

	r := NewRegistry()
	if _, err := r.LoadDir(dir, "*.yaml"); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	reloaded := make(chan int, 8)
	w, err := Watch(r, dir, "*.yaml", OnReload(func(n int, err error) {
		if err == nil {
			reloaded <- n
		}
	}))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	writeFile(t, filepath.Join(dir, "b.yaml"), "name: haul\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-reloaded:
			if n == 2 {
				if _, ok := r.Definition("haul"); !ok {
					t.Error("haul missing after reload")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}
