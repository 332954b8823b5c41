package models

import (
	"encoding/json"
	"testing"
)

func TestAgentState_Valid(t *testing.T) {
	tests := []struct {
		name  string
		state AgentState
		want  bool
	}{
		{"idle is valid", AgentIdle, true},
		{"working is valid", AgentWorking, true},
		{"empty string is invalid", AgentState(""), false},
		{"job state is invalid", AgentState("pending"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Valid(); got != tt.want {
				t.Errorf("AgentState(%q).Valid() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestAgent_AssignRelease(t *testing.T) {
	a := NewAgent(4)
	a.Assign(9)
	if a.State != AgentWorking || !a.IsOn(9) {
		t.Fatalf("after Assign: state=%s current=%v", a.State, a.CurrentJob)
	}
	a.Release()
	if a.State != AgentIdle || a.CurrentJob != nil {
		t.Errorf("after Release: state=%s current=%v", a.State, a.CurrentJob)
	}
}

func TestAgent_QueueOrdering(t *testing.T) {
	a := NewAgent(1)
	a.Enqueue(3)
	a.Enqueue(5)
	if a.Enqueue(3) {
		t.Error("Enqueue of a queued id should report false")
	}
	a.PushFront(5)
	want := []EntityID{5, 3}
	if len(a.JobQueue) != len(want) {
		t.Fatalf("JobQueue = %v, want %v", a.JobQueue, want)
	}
	for i := range want {
		if a.JobQueue[i] != want[i] {
			t.Errorf("JobQueue[%d] = %d, want %d", i, a.JobQueue[i], want[i])
		}
	}
}

func TestAgent_CarriedFor(t *testing.T) {
	load := Resources{{Kind: "wood", Amount: 2}}

	a := NewAgent(1)
	a.Assign(4)
	a.CarriedResources = load
	if got := a.CarriedFor(4); got.Amount("wood") != 2 {
		t.Errorf("unowned load should belong to the current job, got %v", got)
	}

	a.CarryingFor = IDPtr(7)
	if got := a.CarriedFor(4); got != nil {
		t.Errorf("CarriedFor(4) = %v, want nil", got)
	}
	if got := a.CarriedFor(7); got.Amount("wood") != 2 {
		t.Errorf("CarriedFor(7) = %v", got)
	}
}

func TestAgent_StaminaDefault(t *testing.T) {
	a := NewAgent(1)
	if got := a.StaminaOrDefault(); got != DefaultStamina {
		t.Errorf("StaminaOrDefault() = %v, want %v", got, DefaultStamina)
	}
	s := 40.0
	a.Stamina = &s
	if got := a.StaminaOrDefault(); got != 40 {
		t.Errorf("StaminaOrDefault() = %v, want 40", got)
	}
}

func TestAgent_ExtraRoundTrip(t *testing.T) {
	input := `{"entity_id":2,"state":"idle","mood":"cheerful","skills":{"build":2}}`

	var a Agent
	if err := json.Unmarshal([]byte(input), &a); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if a.ID != 2 || a.Skills["build"] != 2 {
		t.Errorf("decoded agent = %+v", a)
	}
	if string(a.Extra["mood"]) != `"cheerful"` {
		t.Errorf("Extra[mood] = %s, want \"cheerful\"", a.Extra["mood"])
	}

	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal back: %v", err)
	}
	if back["mood"] != "cheerful" {
		t.Errorf("re-encoded mood = %v, want cheerful", back["mood"])
	}
}
