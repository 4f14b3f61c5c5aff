// Package models defines the data structures for transcript events.
package models

// Event types, also used as the eventType header on Kafka messages.
const (
	EventTranscriptPartial = "tutor.transcript.partial"
	EventTranscriptFinal   = "tutor.transcript.final"
)

// TranscriptPartial is emitted for every transcription fragment merged into an
// open transcript entry.
type TranscriptPartial struct {
	EventType  string `json:"eventType" jsonschema:"always tutor.transcript.partial"`
	SessionID  string `json:"sessionId"`
	TurnID     string `json:"turnId"`
	Timestamp  int64  `json:"timestamp" jsonschema:"unix milliseconds"`
	Speaker    string `json:"speaker" jsonschema:"user or ai"`
	EntryIndex int    `json:"entryIndex" jsonschema:"position of the entry in the session transcript"`
	Fragment   string `json:"fragment" jsonschema:"text received in this update"`
	Text       string `json:"text" jsonschema:"entry text accumulated so far"`
}

// TranscriptFinal is emitted once per transcript entry when it is finalized.
type TranscriptFinal struct {
	EventType      string `json:"eventType" jsonschema:"always tutor.transcript.final"`
	SessionID      string `json:"sessionId"`
	TurnID         string `json:"turnId"`
	Timestamp      int64  `json:"timestamp" jsonschema:"unix milliseconds"`
	Speaker        string `json:"speaker" jsonschema:"user, ai or system"`
	EntryIndex     int    `json:"entryIndex" jsonschema:"position of the entry in the session transcript"`
	Text           string `json:"text"`
	NativeLanguage string `json:"nativeLanguage" jsonschema:"BCP 47 code"`
	TargetLanguage string `json:"targetLanguage" jsonschema:"BCP 47 code"`
}
