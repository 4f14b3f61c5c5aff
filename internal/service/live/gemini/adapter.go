// Package gemini provides a live.Dialer backed by the Google Gen AI SDK
// Live API.
package gemini

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"ai-voice-tutor/internal/observability/metrics"
	"ai-voice-tutor/internal/service/codec"
	"ai-voice-tutor/internal/service/live"
)

const transport = "gemini"

// Dialer implements live.Dialer using client.Live.Connect.
type Dialer struct {
	apiKey   string
	queueLen int
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// New creates a Gemini dialer. An empty apiKey lets the SDK read
// GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func New(apiKey string, logger zerolog.Logger) *Dialer {
	return &Dialer{
		apiKey:   apiKey,
		queueLen: live.DefaultQueueLen,
		logger:   logger.With().Str("transport", transport).Logger(),
		metrics:  metrics.DefaultMetrics,
	}
}

// WithQueueLen sets how many outbound frames may wait for the writer.
func (d *Dialer) WithQueueLen(n int) *Dialer {
	if n > 0 {
		d.queueLen = n
	}
	return d
}

// Connect opens a Live session. OnOpen fires once the server acknowledges setup.
func (d *Dialer) Connect(ctx context.Context, cfg live.Config, cb live.Callback) (live.Handle, error) {
	start := time.Now()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  d.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		d.metrics.RecordLiveError(transport, "client")
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	session, err := client.Live.Connect(ctx, cfg.Model, buildConnectConfig(cfg))
	if err != nil {
		d.metrics.RecordLiveError(transport, "connect")
		return nil, fmt.Errorf("gemini live connect: %w", err)
	}
	d.metrics.RecordLiveConnect(transport, time.Since(start).Seconds())
	d.logger.Info().Str("model", cfg.Model).Str("voice", cfg.Voice).Msg("Live session connected")

	h := &handle{
		session: session,
		cb:      cb,
		outbox:  live.NewOutbox(d.queueLen),
		logger:  d.logger,
		metrics: d.metrics,
	}
	go h.writeLoop()
	go h.readLoop()
	return h, nil
}

// buildConnectConfig maps the channel configuration onto the SDK's.
func buildConnectConfig(cfg live.Config) *genai.LiveConnectConfig {
	lc := &genai.LiveConnectConfig{}

	modality := cfg.ResponseModality
	if modality == "" {
		modality = live.ModalityAudio
	}
	lc.ResponseModalities = []genai.Modality{genai.Modality(modality)}

	if cfg.SystemInstruction != "" {
		lc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(cfg.SystemInstruction)},
		}
	}
	if cfg.Voice != "" {
		lc.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.InputTranscription {
		lc.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		lc.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return lc
}

// convertMessage flattens a server message into channel messages. A model turn
// with several audio parts yields one message per part after the first.
func convertMessage(msg *genai.LiveServerMessage) []live.Message {
	if msg == nil || msg.ServerContent == nil {
		return nil
	}
	sc := msg.ServerContent

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
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			audio = append(audio, &codec.Blob{
				Data:     codec.Encode(p.InlineData.Data),
				MIMEType: p.InlineData.MIMEType,
			})
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

type handle struct {
	session *genai.Session
	cb      live.Callback
	outbox  *live.Outbox
	logger  zerolog.Logger
	metrics *metrics.Metrics

	closing   atomic.Bool
	closeOnce sync.Once
	sendErr   atomic.Pointer[error]
	opened    bool
}

func (h *handle) Send(frame codec.Blob) error {
	if h.closing.Load() {
		return live.ErrClosed
	}
	return h.outbox.Push(frame)
}

func (h *handle) Close() error {
	if !h.closing.CompareAndSwap(false, true) {
		return nil
	}
	h.shutdown()
	return nil
}

func (h *handle) shutdown() {
	h.closeOnce.Do(func() {
		h.outbox.Close()
		if err := h.session.Close(); err != nil {
			h.logger.Debug().Err(err).Msg("Live session close")
		}
	})
}

func (h *handle) open() {
	if h.opened {
		return
	}
	h.opened = true
	h.cb.OnOpen()
}

func (h *handle) readLoop() {
	defer h.cb.OnClose()
	defer h.shutdown()

	for {
		msg, err := h.session.Receive()
		if err != nil {
			if h.closing.Load() {
				return
			}
			if p := h.sendErr.Load(); p != nil {
				err = *p
			}
			h.metrics.RecordLiveError(transport, "receive")
			h.logger.Error().Err(err).Msg("Live session failed")
			h.cb.OnError(fmt.Errorf("gemini live: %w", err))
			return
		}

		if msg.SetupComplete != nil {
			h.open()
			continue
		}
		if msg.GoAway != nil {
			h.logger.Warn().Msg("Server requested disconnect")
		}

		h.open()
		for _, m := range convertMessage(msg) {
			h.metrics.RecordLiveMessage(transport, m.Type())
			h.cb.OnMessage(m)
		}
	}
}

func (h *handle) writeLoop() {
	for {
		select {
		case <-h.outbox.Done():
			return
		case frame := <-h.outbox.Frames():
			data, err := codec.Decode(frame.Data)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Dropping undecodable outbound frame")
				continue
			}
			err = h.session.SendRealtimeInput(genai.LiveRealtimeInput{
				Audio: &genai.Blob{Data: data, MIMEType: frame.MIMEType},
			})
			if err != nil {
				if h.closing.Load() {
					return
				}
				err = fmt.Errorf("send realtime input: %w", err)
				h.sendErr.Store(&err)
				h.metrics.RecordLiveError(transport, "send")
				// Closing the session unblocks Receive, which reports sendErr.
				h.shutdown()
				return
			}
		}
	}
}

var _ live.Dialer = (*Dialer)(nil)
var _ live.Handle = (*handle)(nil)

