package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKeys_AllGettable(t *testing.T) {
	cfg := Default()
	for _, key := range Keys() {
		if _, err := Get(cfg, key); err != nil {
			t.Errorf("Get(%q): %v", key, err)
		}
	}
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"engine.policy", "JOBFORGE_ENGINE_POLICY"},
		{"run.snapshot_every", "JOBFORGE_RUN_SNAPSHOT_EVERY"},
		{"tui.refresh_rate", "JOBFORGE_TUI_REFRESH_RATE"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := EnvName(tt.key); got != tt.want {
				t.Errorf("EnvName(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
		check   func(*Config) bool
	}{
		{"policy", "engine.policy", "fifo", false, func(c *Config) bool { return c.Engine.Policy == "fifo" }},
		{"float", "engine.base_rate", "2.5", false, func(c *Config) bool { return c.Engine.BaseRate == 2.5 }},
		{"uint", "run.ticks", "12", false, func(c *Config) bool { return c.Run.Ticks == 12 }},
		{"bool", "jobtypes.watch", "true", false, func(c *Config) bool { return c.JobTypes.Watch }},
		{"duration", "tui.refresh_rate", "1s", false, func(c *Config) bool { return c.TUI.RefreshRate == time.Second }},
		{"bad number", "run.ticks", "many", true, nil},
		{"negative uint", "engine.aging_factor", "-1", true, nil},
		{"bad duration", "tui.refresh_rate", "soon", true, nil},
		{"unknown", "engine.nope", "1", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := Set(cfg, tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("value for %s not applied", tt.key)
			}
		})
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := Get(Default(), "missing.key")
	if !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
}

func TestGetKeySource(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("run:\n  ticks: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	if got := GetKeySource("run.ticks"); got != KeySourceProject {
		t.Errorf("expected %q, got %q", KeySourceProject, got)
	}
	if got := GetKeySource("engine.policy"); got != KeySourceDefault {
		t.Errorf("expected %q, got %q", KeySourceDefault, got)
	}

	t.Setenv("JOBFORGE_RUN_TICKS", "9")
	if got := GetKeySource("run.ticks"); got != KeySourceEnv {
		t.Errorf("expected %q, got %q", KeySourceEnv, got)
	}
}
