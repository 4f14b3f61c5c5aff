package turn

import (
	"testing"
)

func TestTracker_InitialState(t *testing.T) {
	tr := NewTracker("turn-1")

	if tr.Phase() != PhaseUser {
		t.Errorf("expected PhaseUser, got %v", tr.Phase())
	}
	if tr.TurnId() != "turn-1" {
		t.Errorf("expected turn-1, got %v", tr.TurnId())
	}
	if tr.Speaking() {
		t.Error("expected tutor not speaking")
	}
}

func TestTracker_BeginTutor_OnlyReportsEdge(t *testing.T) {
	tr := NewTracker("turn-1")

	began, err := tr.BeginTutor()
	if err != nil || !began {
		t.Fatalf("first BeginTutor: began=%v err=%v", began, err)
	}
	began, err = tr.BeginTutor()
	if err != nil || began {
		t.Errorf("second BeginTutor: began=%v err=%v", began, err)
	}
	if !tr.Speaking() {
		t.Error("expected tutor speaking")
	}
}

func TestTracker_BargeIn(t *testing.T) {
	tr := NewTracker("turn-1")
	tr.BeginTutor()

	if err := tr.AddUser("wait"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Speaking() {
		t.Error("expected user speech to take the floor")
	}

	began, _ := tr.BeginTutor()
	if !began {
		t.Error("expected tutor to begin again after barge-in")
	}
}

func TestTracker_AddTutorRequiresFloor(t *testing.T) {
	tr := NewTracker("turn-1")

	if err := tr.AddTutor("Hola"); err == nil {
		t.Error("expected error when tutor does not hold the floor")
	}
	tr.BeginTutor()
	if err := tr.AddTutor("Hola"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTracker_StopTutor(t *testing.T) {
	tr := NewTracker("turn-1")

	if tr.StopTutor() {
		t.Error("expected false when tutor not speaking")
	}
	tr.BeginTutor()
	if !tr.StopTutor() {
		t.Error("expected true when tutor was speaking")
	}
	if tr.Phase() != PhaseUser {
		t.Errorf("expected PhaseUser, got %v", tr.Phase())
	}
}

func TestTracker_Complete(t *testing.T) {
	tr := NewTracker("turn-1")
	tr.AddUser("Ho")
	tr.AddUser("la")
	tr.BeginTutor()
	tr.AddTutor("¡Hola! ")
	tr.AddTutor("Muy bien.")

	sum, err := tr.Complete()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Summary{TurnId: "turn-1", User: "Hola", Tutor: "¡Hola! Muy bien."}
	if sum != want {
		t.Errorf("got %+v, want %+v", sum, want)
	}

	if _, err := tr.Complete(); err != ErrTurnClosed {
		t.Errorf("second Complete: expected ErrTurnClosed, got %v", err)
	}
}

func TestTracker_OperationsFailAfterComplete(t *testing.T) {
	tr := NewTracker("turn-1")
	tr.Complete()

	if err := tr.AddUser("x"); err != ErrTurnClosed {
		t.Errorf("AddUser: expected ErrTurnClosed, got %v", err)
	}
	if _, err := tr.BeginTutor(); err != ErrTurnClosed {
		t.Errorf("BeginTutor: expected ErrTurnClosed, got %v", err)
	}
	if err := tr.AddTutor("x"); err != ErrTurnClosed {
		t.Errorf("AddTutor: expected ErrTurnClosed, got %v", err)
	}
}

func TestTracker_Drop(t *testing.T) {
	tr := NewTracker("turn-1")
	tr.AddUser("Ho")

	if !tr.Drop() {
		t.Error("expected Drop() to return true mid-turn")
	}
	if tr.Drop() {
		t.Error("expected second Drop() to return false")
	}
	if tr.Phase() != PhaseDropped {
		t.Errorf("expected PhaseDropped, got %v", tr.Phase())
	}
	if _, err := tr.Complete(); err != ErrTurnClosed {
		t.Errorf("expected ErrTurnClosed after drop, got %v", err)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker("turn-1")
	tr.AddUser("Hola")
	tr.BeginTutor()
	tr.AddTutor("Hola")
	tr.Complete()

	tr.Reset("turn-2")

	if tr.TurnId() != "turn-2" {
		t.Errorf("expected turn-2, got %v", tr.TurnId())
	}
	if tr.Phase() != PhaseUser {
		t.Errorf("expected PhaseUser after reset, got %v", tr.Phase())
	}
	sum, err := tr.Complete()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.User != "" || sum.Tutor != "" {
		t.Errorf("expected empty accumulators after reset, got %+v", sum)
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseUser, "USER"},
		{PhaseTutor, "TUTOR"},
		{PhaseComplete, "COMPLETE"},
		{PhaseDropped, "DROPPED"},
		{Phase(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.expected {
			t.Errorf("Phase(%d).String() = %v, want %v", tt.phase, got, tt.expected)
		}
	}
}

func TestPhase_IsTerminal(t *testing.T) {
	tests := []struct {
		phase      Phase
		isTerminal bool
	}{
		{PhaseUser, false},
		{PhaseTutor, false},
		{PhaseComplete, true},
		{PhaseDropped, true},
	}

	for _, tt := range tests {
		if got := tt.phase.IsTerminal(); got != tt.isTerminal {
			t.Errorf("Phase(%s).IsTerminal() = %v, want %v", tt.phase, got, tt.isTerminal)
		}
	}
}
