package transcript

import "testing"

func TestTranscript_MergesFragmentsOfSameSpeaker(t *testing.T) {
	tr := New()

	first := tr.AppendFragment(SpeakerUser, "Hel")
	if !first.Created || first.Index != 0 || first.Sealed != -1 {
		t.Errorf("unexpected first update: %+v", first)
	}
	second := tr.AppendFragment(SpeakerUser, "lo")
	if second.Created || second.Index != 0 {
		t.Errorf("unexpected second update: %+v", second)
	}

	entries := tr.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := Entry{Speaker: SpeakerUser, Text: "Hello", IsFinal: false}
	if entries[0] != want {
		t.Errorf("got %+v, want %+v", entries[0], want)
	}
}

func TestTranscript_FinalizeThenAppendStartsNewEntry(t *testing.T) {
	tr := New()
	tr.AppendFragment(SpeakerUser, "Hel")
	tr.AppendFragment(SpeakerUser, "lo")

	idx, ok := tr.Finalize(SpeakerUser)
	if !ok || idx != 0 {
		t.Fatalf("expected finalize of entry 0, got idx=%d ok=%v", idx, ok)
	}
	if e, _ := tr.Last(); e != (Entry{Speaker: SpeakerUser, Text: "Hello", IsFinal: true}) {
		t.Errorf("unexpected entry after finalize: %+v", e)
	}

	u := tr.AppendFragment(SpeakerUser, "!")
	if !u.Created || u.Index != 1 {
		t.Errorf("expected new entry at index 1, got %+v", u)
	}

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "Hello" || !entries[0].IsFinal {
		t.Errorf("first entry mutated: %+v", entries[0])
	}
	if entries[1] != (Entry{Speaker: SpeakerUser, Text: "!", IsFinal: false}) {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestTranscript_FinalizeIsIdempotent(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Transcript)
		speaker Speaker
	}{
		{"empty transcript", func(*Transcript) {}, SpeakerUser},
		{"already final", func(tr *Transcript) {
			tr.AppendFragment(SpeakerAI, "Hola")
			tr.Finalize(SpeakerAI)
		}, SpeakerAI},
		{"other speaker", func(tr *Transcript) {
			tr.AppendFragment(SpeakerAI, "Hola")
		}, SpeakerUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			tt.setup(tr)
			before := tr.Entries()

			if _, ok := tr.Finalize(tt.speaker); ok {
				t.Error("expected no-op finalize")
			}

			after := tr.Entries()
			if len(before) != len(after) {
				t.Fatalf("entry count changed: %d -> %d", len(before), len(after))
			}
			for i := range before {
				if before[i] != after[i] {
					t.Errorf("entry %d changed: %+v -> %+v", i, before[i], after[i])
				}
			}
		})
	}
}

func TestTranscript_SpeakerChangeSealsOpenEntry(t *testing.T) {
	tr := New()
	tr.AppendFragment(SpeakerUser, "Hi")

	u := tr.AppendFragment(SpeakerAI, "Hello")
	if !u.Created || u.Index != 1 || u.Sealed != 0 {
		t.Errorf("unexpected update: %+v", u)
	}

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].IsFinal {
		t.Error("expected user entry to be final")
	}
	if entries[1].IsFinal {
		t.Error("expected AI entry to be open")
	}
}

func TestTranscript_AtMostOneOpenEntry(t *testing.T) {
	tr := New()
	steps := []struct {
		speaker Speaker
		text    string
	}{
		{SpeakerUser, "Ho"},
		{SpeakerUser, "la"},
		{SpeakerAI, "¡Hola!"},
		{SpeakerUser, "Como"},
		{SpeakerAI, "Bien"},
		{SpeakerAI, " gracias"},
	}

	for i, s := range steps {
		tr.AppendFragment(s.speaker, s.text)

		open := 0
		entries := tr.Entries()
		for j, e := range entries {
			if !e.IsFinal {
				open++
				if j != len(entries)-1 {
					t.Errorf("step %d: open entry %d is not last", i, j)
				}
			}
		}
		if open > 1 {
			t.Errorf("step %d: %d open entries", i, open)
		}
	}
}

func TestTranscript_Note(t *testing.T) {
	tr := New()
	tr.Note("Connecting to AI Tutor...")
	tr.AppendFragment(SpeakerUser, "Hola")
	idx := tr.Note("An error occurred: boom")

	if idx != 2 {
		t.Errorf("expected note at index 2, got %d", idx)
	}
	entries := tr.Entries()
	if !entries[1].IsFinal {
		t.Error("expected open user entry to be sealed by note")
	}
	if entries[2] != (Entry{Speaker: SpeakerSystem, Text: "An error occurred: boom", IsFinal: true}) {
		t.Errorf("unexpected note entry: %+v", entries[2])
	}
}

func TestTranscript_EntriesReturnsCopy(t *testing.T) {
	tr := New()
	tr.AppendFragment(SpeakerAI, "Hola")

	entries := tr.Entries()
	entries[0].Text = "changed"

	if e, _ := tr.Last(); e.Text != "Hola" {
		t.Errorf("transcript mutated through copy: %q", e.Text)
	}
}

func TestTranscript_Reset(t *testing.T) {
	tr := New()
	tr.AppendFragment(SpeakerAI, "Hola")
	tr.Reset()

	if tr.Len() != 0 {
		t.Errorf("expected empty transcript, got %d entries", tr.Len())
	}
	if _, ok := tr.Last(); ok {
		t.Error("expected no last entry")
	}
}

func TestSpeaker_String(t *testing.T) {
	tests := []struct {
		speaker  Speaker
		expected string
	}{
		{SpeakerUser, "User"},
		{SpeakerAI, "AI"},
		{SpeakerSystem, "System"},
		{Speaker("robot"), "Speaker(robot)"},
	}

	for _, tt := range tests {
		if got := tt.speaker.String(); got != tt.expected {
			t.Errorf("Speaker(%q).String() = %v, want %v", string(tt.speaker), got, tt.expected)
		}
	}
}
