// Package live defines the duplex channel to a realtime conversational model.
package live

import (
	"context"
	"errors"
	"fmt"

	"ai-voice-tutor/internal/service/codec"
)

// ErrClosed is returned by Send after the channel has been closed.
var ErrClosed = errors.New("live: channel closed")

// Defaults for the tutor conversation.
const (
	DefaultModel    = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice    = "Zephyr"
	ModalityAudio   = "AUDIO"
	DefaultQueueLen = 64
)

// Config is sent to the provider when the channel is opened.
type Config struct {
	Model               string
	SystemInstruction   string
	Voice               string
	ResponseModality    string
	InputTranscription  bool
	OutputTranscription bool
}

// DefaultConfig returns the tutor session parameters for the given languages.
func DefaultConfig(native, target string) Config {
	return Config{
		Model:               DefaultModel,
		SystemInstruction:   TutorInstruction(native, target),
		Voice:               DefaultVoice,
		ResponseModality:    ModalityAudio,
		InputTranscription:  true,
		OutputTranscription: true,
	}
}

// TutorInstruction is the system prompt for the tutor persona.
func TutorInstruction(native, target string) string {
	return fmt.Sprintf("You are Kai, a friendly and patient AI language teacher. "+
		"The user's native language is %[1]s. You are teaching them %[2]s. "+
		"Start by greeting them warmly in %[2]s and then briefly explain the greeting's meaning in %[1]s. "+
		"Your primary goal is to get the user to speak. "+
		"Keep your responses short, encouraging, and focused on simple, conversational phrases. "+
		"Gently correct their pronunciation if needed. Wait for them to speak.", native, target)
}

// Transcription is an incremental piece of recognized or synthesized text.
type Transcription struct {
	Text     string
	Finished bool
}

// Message is one inbound server event. Several fields may be set at once.
type Message struct {
	InputTranscription  *Transcription
	OutputTranscription *Transcription
	TurnComplete        bool
	Interrupted         bool
	Audio               *codec.Blob
}

// Empty reports whether m carries nothing the session acts on.
func (m Message) Empty() bool {
	return m.InputTranscription == nil && m.OutputTranscription == nil &&
		!m.TurnComplete && !m.Interrupted && m.Audio == nil
}

// Type names the first field set on m, in dispatch order. Used as a label.
func (m Message) Type() string {
	switch {
	case m.InputTranscription != nil:
		return "input_transcription"
	case m.OutputTranscription != nil:
		return "output_transcription"
	case m.TurnComplete:
		return "turn_complete"
	case m.Interrupted:
		return "interrupted"
	case m.Audio != nil:
		return "audio"
	}
	return "empty"
}

// Callback receives channel events. Calls are made from the transport's reader
// goroutine and never concurrently with each other.
type Callback interface {
	// OnOpen is called once the provider accepted the session. It precedes
	// every OnMessage and may run before Connect returns.
	OnOpen()

	// OnMessage is called for every inbound server event.
	OnMessage(msg Message)

	// OnError is called when the channel fails. OnClose follows.
	OnError(err error)

	// OnClose is called once when the channel is gone, whoever closed it.
	OnClose()
}

// Handle is an open channel.
type Handle interface {
	// Send queues an audio frame. It never blocks on the network.
	Send(frame codec.Blob) error

	// Close shuts the channel down. Idempotent; does not wait for the reader.
	Close() error
}

// Dialer opens channels (Gemini SDK, raw websocket, mock, etc.).
type Dialer interface {
	Connect(ctx context.Context, cfg Config, cb Callback) (Handle, error)
}
