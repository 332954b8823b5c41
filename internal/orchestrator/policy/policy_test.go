package policy

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/jobforge/internal/board"
)

func TestValidate_ResetsOutOfRange(t *testing.T) {
	c := Default()
	c.Scheduling.Policy = ""
	c.Aging.ShortageBoost = -1
	c.Progress.BaseRate = 0
	c.Progress.MinIncrement = -2
	c.Progress.RequiredProgress = 0
	c.Loop.TicksPerSecond = -5

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := Default()
	if c.Scheduling.Policy != want.Scheduling.Policy {
		t.Errorf("policy = %q, want %q", c.Scheduling.Policy, want.Scheduling.Policy)
	}
	if c.Aging.ShortageBoost != want.Aging.ShortageBoost {
		t.Errorf("shortage boost = %d", c.Aging.ShortageBoost)
	}
	if c.PhaseConfig() != want.PhaseConfig() {
		t.Errorf("phase config = %+v, want %+v", c.PhaseConfig(), want.PhaseConfig())
	}
	if c.Loop.TicksPerSecond != 0 {
		t.Errorf("tps = %v", c.Loop.TicksPerSecond)
	}
}

func TestValidate_UnknownPolicy(t *testing.T) {
	c := Default()
	c.Scheduling.Policy = "round-robin"
	if err := c.Validate(); !errors.Is(err, board.ErrUnknownPolicy) {
		t.Fatalf("Validate error = %v, want ErrUnknownPolicy", err)
	}
}

func TestAgingRule(t *testing.T) {
	c := Default()
	c.Aging.Factor = 4
	r := c.AgingRule()
	if r.Factor != 4 || r.ShortageBoost != 100 {
		t.Errorf("aging rule = %+v", r)
	}
}
