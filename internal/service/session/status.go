package session

import (
	"fmt"
)

// Status is the single authoritative state of a session.
type Status int

const (
	// StatusIdle - No channel, no capture, no playback.
	StatusIdle Status = iota
	// StatusConnecting - Channel requested; capture not yet started.
	StatusConnecting
	// StatusListening - Channel open, capture active, no tutor audio sounding.
	StatusListening
	// StatusWaiting - The user finished an utterance; the tutor has not answered yet.
	StatusWaiting
	// StatusSpeaking - Tutor audio is sounding.
	StatusSpeaking
	// StatusError - The session failed and was torn down. Terminal until a new
	// session is started.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusConnecting:
		return "Connecting"
	case StatusListening:
		return "Listening"
	case StatusWaiting:
		return "Waiting"
	case StatusSpeaking:
		return "Speaking"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// IsActive returns true while the session owns live resources.
func (s Status) IsActive() bool {
	return s >= StatusConnecting && s <= StatusSpeaking
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for c := StatusIdle; c <= StatusError; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown session status %q", b)
}
