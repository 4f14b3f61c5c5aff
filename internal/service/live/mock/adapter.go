// Package mock provides an offline live.Dialer that plays a scripted tutor.
// It simulates realistic channel behavior: the tutor greets first, user
// transcription fragments arrive one per audio frame, and each user turn is
// answered with transcribed synthetic speech followed by turnComplete.
package mock

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/observability/metrics"
	"ai-voice-tutor/internal/service/codec"
	"ai-voice-tutor/internal/service/live"
)

const transport = "mock"

// Exchange is one scripted turn: what the user is heard saying, and the reply.
type Exchange struct {
	User  []string // Input transcription fragments, one per audio frame
	Tutor []string // Output transcription fragments, each with an audio chunk
}

// DefaultGreeting opens every session.
var DefaultGreeting = []string{"¡Hola! ", "Soy Kai. ", "\"Hola\" means \"hello\". ", "Now you try!"}

// DefaultExchanges cycle for as long as the user keeps talking.
var DefaultExchanges = []Exchange{
	{
		User:  []string{"Ho", "la"},
		Tutor: []string{"¡Muy bien! ", "Your pronunciation is great. ", "Try: \"¿Cómo estás?\""},
	},
	{
		User:  []string{"¿Có", "mo es", "tás?"},
		Tutor: []string{"¡Perfecto! ", "I am fine: \"Estoy bien\"."},
	},
	{
		User:  []string{"Es", "toy bien"},
		Tutor: []string{"Excellent! ", "Let's learn numbers next."},
	},
}

// Options tune the simulation.
type Options struct {
	Greeting     []string
	Exchanges    []Exchange
	Delay        time.Duration // Simulated processing delay between events
	ToneDuration time.Duration // Audio length per tutor fragment
	ToneHz       float64
}

// DefaultOptions returns a lively but quick simulation.
func DefaultOptions() Options {
	return Options{
		Greeting:     DefaultGreeting,
		Exchanges:    DefaultExchanges,
		Delay:        50 * time.Millisecond,
		ToneDuration: 300 * time.Millisecond,
		ToneHz:       440,
	}
}

// Dialer implements live.Dialer with scripted responses.
type Dialer struct {
	opts    Options
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a mock dialer.
func New(opts Options, logger zerolog.Logger) *Dialer {
	return &Dialer{
		opts:    opts,
		logger:  logger.With().Str("transport", transport).Logger(),
		metrics: metrics.DefaultMetrics,
	}
}

// Connect starts the simulated session.
func (d *Dialer) Connect(ctx context.Context, cfg live.Config, cb live.Callback) (live.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.metrics.RecordLiveConnect(transport, 0)
	d.logger.Info().Str("model", cfg.Model).Msg("Mock live session connected")

	h := &Handle{
		opts:    d.opts,
		cb:      cb,
		frames:  make(chan struct{}, 256),
		done:    make(chan struct{}),
		logger:  d.logger,
		metrics: d.metrics,
	}
	go h.run()
	return h, nil
}

// Handle is a simulated live channel.
type Handle struct {
	opts    Options
	cb      live.Callback
	frames  chan struct{}
	done    chan struct{}
	once    sync.Once
	closed  atomic.Bool
	logger  zerolog.Logger
	metrics *metrics.Metrics

	received atomic.Int64 // Count of audio frames received
	ignored  atomic.Int64 // Frames that arrived while the tutor was talking
	speaking atomic.Bool
}

// Send records an audio frame. Each frame advances the user's utterance.
func (h *Handle) Send(frame codec.Blob) error {
	if h.closed.Load() {
		return live.ErrClosed
	}
	h.received.Add(1)
	if h.speaking.Load() {
		h.ignored.Add(1)
		return nil
	}
	select {
	case h.frames <- struct{}{}:
	default:
	}
	return nil
}

// Close ends the simulated session without waiting for it to wind down.
func (h *Handle) Close() error {
	h.closed.Store(true)
	h.once.Do(func() { close(h.done) })
	return nil
}

// Received returns the number of frames sent on this handle.
func (h *Handle) Received() int64 { return h.received.Load() }

func (h *Handle) run() {
	defer h.cb.OnClose()

	if !h.sleep() {
		return
	}
	h.cb.OnOpen()

	if len(h.opts.Greeting) > 0 && !h.reply(h.opts.Greeting) {
		return
	}

	exchanges := playable(h.opts.Exchanges)
	for turn := 0; len(exchanges) > 0; turn++ {
		ex := exchanges[turn%len(exchanges)]

		for i, fragment := range ex.User {
			select {
			case <-h.done:
				return
			case <-h.frames:
			}
			if !h.sleep() {
				return
			}
			h.emit(live.Message{InputTranscription: &live.Transcription{
				Text:     fragment,
				Finished: i == len(ex.User)-1,
			}})
		}

		if !h.reply(ex.Tutor) {
			return
		}
	}
	<-h.done
}

// playable drops exchanges the user never speaks in; they could never start.
func playable(exchanges []Exchange) []Exchange {
	var out []Exchange
	for _, ex := range exchanges {
		if len(ex.User) > 0 {
			out = append(out, ex)
		}
	}
	return out
}

// reply speaks fragments, then completes the turn.
func (h *Handle) reply(fragments []string) bool {
	h.speaking.Store(true)
	defer h.speaking.Store(false)

	for _, fragment := range fragments {
		if !h.sleep() {
			return false
		}
		h.emit(live.Message{OutputTranscription: &live.Transcription{Text: fragment}})
		h.emit(live.Message{Audio: h.tone()})
	}
	if !h.sleep() {
		return false
	}
	h.emit(live.Message{TurnComplete: true})

	// Drain frames captured while the tutor was talking.
	for {
		select {
		case <-h.frames:
		default:
			return true
		}
	}
}

func (h *Handle) emit(msg live.Message) {
	if h.closed.Load() {
		return
	}
	h.metrics.RecordLiveMessage(transport, msg.Type())
	h.cb.OnMessage(msg)
}

// sleep waits for the simulated delay; false means the handle was closed.
func (h *Handle) sleep() bool {
	if h.opts.Delay <= 0 {
		select {
		case <-h.done:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(h.opts.Delay)
	defer t.Stop()
	select {
	case <-h.done:
		return false
	case <-t.C:
		return true
	}
}

// tone synthesizes a sine chunk at the output rate.
func (h *Handle) tone() *codec.Blob {
	n := int(h.opts.ToneDuration * codec.OutputSampleRate / time.Second)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.2 * math.Sin(2*math.Pi*h.opts.ToneHz*float64(i)/codec.OutputSampleRate))
	}
	return &codec.Blob{
		Data:     codec.Encode(codec.EncodePCM16(samples)),
		MIMEType: "audio/pcm;rate=24000",
	}
}

var _ live.Dialer = (*Dialer)(nil)
var _ live.Handle = (*Handle)(nil)
