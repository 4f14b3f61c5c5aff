// Package transcript assembles streamed transcription fragments into an
// ordered log of speaker-attributed utterances.
package transcript

import "fmt"

// Speaker identifies who produced an utterance.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerAI     Speaker = "ai"
	SpeakerSystem Speaker = "system"
)

// String returns the display name of the speaker.
func (s Speaker) String() string {
	switch s {
	case SpeakerUser:
		return "User"
	case SpeakerAI:
		return "AI"
	case SpeakerSystem:
		return "System"
	default:
		return fmt.Sprintf("Speaker(%s)", string(s))
	}
}

// Entry is one utterance in the transcript.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	IsFinal bool    `json:"isFinal"`
}

// Update describes the effect of AppendFragment.
type Update struct {
	// Index of the entry that was created or extended.
	Index int
	// Created is true when a new entry was appended.
	Created bool
	// Sealed is the index of an open entry of another speaker that was
	// finalized before appending, or -1.
	Sealed int
}

// Transcript is an ordered, append-only sequence of entries.
//
// Only the last entry is ever rewritten, and at most one entry is open
// (IsFinal == false); when present it is always the last one.
//
// A Transcript is not safe for concurrent use; its owner serializes access.
type Transcript struct {
	entries []Entry
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// AppendFragment merges text into the open entry of the same speaker or
// starts a new open entry.
func (t *Transcript) AppendFragment(speaker Speaker, text string) Update {
	if n := len(t.entries); n > 0 {
		last := &t.entries[n-1]
		if !last.IsFinal && last.Speaker == speaker {
			last.Text += text
			return Update{Index: n - 1, Sealed: -1}
		}
	}

	sealed := t.sealOpen()
	t.entries = append(t.entries, Entry{Speaker: speaker, Text: text})
	return Update{Index: len(t.entries) - 1, Created: true, Sealed: sealed}
}

// Finalize closes the last entry if it belongs to speaker and is still open.
// It returns the index of the finalized entry, or false when nothing changed.
func (t *Transcript) Finalize(speaker Speaker) (int, bool) {
	n := len(t.entries)
	if n == 0 {
		return -1, false
	}
	last := &t.entries[n-1]
	if last.Speaker != speaker || last.IsFinal {
		return -1, false
	}
	last.IsFinal = true
	return n - 1, true
}

// Note appends a final system message.
func (t *Transcript) Note(text string) int {
	t.sealOpen()
	t.entries = append(t.entries, Entry{Speaker: SpeakerSystem, Text: text, IsFinal: true})
	return len(t.entries) - 1
}

func (t *Transcript) sealOpen() int {
	n := len(t.entries)
	if n == 0 || t.entries[n-1].IsFinal {
		return -1
	}
	t.entries[n-1].IsFinal = true
	return n - 1
}

// Entry returns the entry at index i.
func (t *Transcript) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Last returns the most recent entry.
func (t *Transcript) Last() (Entry, bool) {
	return t.Entry(len(t.entries) - 1)
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the transcript.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Reset discards every entry.
func (t *Transcript) Reset() {
	t.entries = nil
}
