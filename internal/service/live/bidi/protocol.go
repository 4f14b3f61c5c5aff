package bidi

import (
	"strings"

	"ai-voice-tutor/internal/service/codec"
	"ai-voice-tutor/internal/service/live"
)

// Client messages.

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *codec.Blob `json:"inlineData,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	Audio *codec.Blob `json:"audio,omitempty"`
}

// Server messages.

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text     string `json:"text"`
	Finished bool   `json:"finished,omitempty"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

func newSetup(cfg live.Config) setupMessage {
	model := cfg.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	modality := cfg.ResponseModality
	if modality == "" {
		modality = live.ModalityAudio
	}

	s := setup{
		Model: model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{modality},
		},
	}
	if cfg.Voice != "" {
		s.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice}},
		}
	}
	if cfg.SystemInstruction != "" {
		s.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}
	if cfg.InputTranscription {
		s.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		s.OutputAudioTranscription = &struct{}{}
	}
	return setupMessage{Setup: s}
}

// messages flattens server content into channel messages, one per audio part
// after the first.
func (sc *serverContent) messages() []live.Message {
	if sc == nil {
		return nil
	}

	var first live.Message
	if t := sc.InputTranscription; t != nil {
		first.InputTranscription = &live.Transcription{Text: t.Text, Finished: t.Finished}
	}
	if t := sc.OutputTranscription; t != nil {
		first.OutputTranscription = &live.Transcription{Text: t.Text, Finished: t.Finished}
	}
	first.TurnComplete = sc.TurnComplete
	first.Interrupted = sc.Interrupted

	var audio []*codec.Blob
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				audio = append(audio, p.InlineData)
			}
		}
	}

	var out []live.Message
	if len(audio) > 0 {
		first.Audio = audio[0]
		audio = audio[1:]
	}
	if !first.Empty() {
		out = append(out, first)
	}
	for _, a := range audio {
		out = append(out, live.Message{Audio: a})
	}
	return out
}
