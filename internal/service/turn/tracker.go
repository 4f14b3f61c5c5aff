// Package turn provides turn ID generation and per-turn bookkeeping.
package turn

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Phase represents who holds the floor within a turn.
type Phase int

const (
	// PhaseUser - The user is speaking (or silence). The tutor is not talking.
	PhaseUser Phase = iota
	// PhaseTutor - The tutor is responding.
	PhaseTutor
	// PhaseComplete - The server signalled turnComplete.
	PhaseComplete
	// PhaseDropped - The session ended mid-turn.
	PhaseDropped
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUser:
		return "USER"
	case PhaseTutor:
		return "TUTOR"
	case PhaseComplete:
		return "COMPLETE"
	case PhaseDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", p)
	}
}

// IsTerminal returns true if the phase is terminal (COMPLETE or DROPPED).
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseDropped
}

// ErrTurnClosed is returned for any mutation of a terminal turn.
var ErrTurnClosed = errors.New("turn is closed")

// Summary is the accumulated text of a finished turn.
type Summary struct {
	TurnId string
	User   string
	Tutor  string
}

// Tracker follows one conversational turn.
// Thread-safe for concurrent access.
//
// Phase transitions:
//
//	USER ⇄ TUTOR ──→ COMPLETE
//	  │       │
//	  └───────┴────→ DROPPED
//
// Rules:
//   - BeginTutor reports true only on the USER → TUTOR edge
//   - User speech during TUTOR (barge-in) returns the floor to USER
//   - COMPLETE and DROPPED reject everything until Reset
type Tracker struct {
	mu     sync.RWMutex
	turnId string
	phase  Phase
	user   strings.Builder
	tutor  strings.Builder
}

// NewTracker creates a tracker in USER phase.
func NewTracker(turnId string) *Tracker {
	return &Tracker{
		turnId: turnId,
		phase:  PhaseUser,
	}
}

// TurnId returns the current turn ID.
func (t *Tracker) TurnId() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.turnId
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

// Speaking returns true while the tutor holds the floor.
func (t *Tracker) Speaking() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase == PhaseTutor
}

// AddUser records user speech and gives the floor to the user.
func (t *Tracker) AddUser(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase.IsTerminal() {
		return ErrTurnClosed
	}
	t.phase = PhaseUser
	t.user.WriteString(text)
	return nil
}

// BeginTutor gives the floor to the tutor. It returns true if the tutor
// was not already speaking.
func (t *Tracker) BeginTutor() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.phase {
	case PhaseUser:
		t.phase = PhaseTutor
		return true, nil
	case PhaseTutor:
		return false, nil
	default:
		return false, ErrTurnClosed
	}
}

// AddTutor records tutor speech. The tutor must hold the floor.
func (t *Tracker) AddTutor(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.phase {
	case PhaseTutor:
		t.tutor.WriteString(text)
		return nil
	case PhaseUser:
		return errors.New("tutor does not hold the floor")
	default:
		return ErrTurnClosed
	}
}

// StopTutor returns the floor to the user. Returns true if the tutor was
// speaking.
func (t *Tracker) StopTutor() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhaseTutor {
		return false
	}
	t.phase = PhaseUser
	return true
}

// Complete closes the turn and returns what was said.
func (t *Tracker) Complete() (Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase.IsTerminal() {
		return Summary{}, ErrTurnClosed
	}
	t.phase = PhaseComplete
	return Summary{
		TurnId: t.turnId,
		User:   t.user.String(),
		Tutor:  t.tutor.String(),
	}, nil
}

// Drop abandons the turn. Returns true if the turn was dropped, false if
// already in a terminal phase.
func (t *Tracker) Drop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase.IsTerminal() {
		return false
	}
	t.phase = PhaseDropped
	return true
}

// Reset starts a new turn in USER phase with empty accumulators.
func (t *Tracker) Reset(newTurnId string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turnId = newTurnId
	t.phase = PhaseUser
	t.user.Reset()
	t.tutor.Reset()
}
