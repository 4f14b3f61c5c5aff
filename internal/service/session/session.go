// Package session orchestrates one live tutoring conversation: it owns the
// channel handle, the capture pipeline and the playback scheduler, applies
// inbound messages to the transcript, and drives the session status.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/language"
	"ai-voice-tutor/internal/observability/metrics"
	"ai-voice-tutor/internal/service/capture"
	"ai-voice-tutor/internal/service/codec"
	"ai-voice-tutor/internal/service/live"
	"ai-voice-tutor/internal/service/playback"
	"ai-voice-tutor/internal/service/transcript"
	"ai-voice-tutor/internal/service/turn"
)

// Transcript notes shown to the user.
const (
	msgConnecting  = "Connecting to AI Tutor..."
	msgEstablished = "Connection established. Start speaking!"
)

var (
	// ErrActive is returned by StartSession while a session is running.
	ErrActive = errors.New("session: already active")
	// ErrEnded is returned by StartSession when EndSession ran before the
	// channel was established.
	ErrEnded = errors.New("session: ended before it was established")

	errRemoteClosed = errors.New("connection closed by server")
)

// DefaultQueueSize bounds the frames buffered before the channel handle exists.
const DefaultQueueSize = 32

// Sink receives transcript events (events.Publisher).
type Sink interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
}

// Config describes the conversation.
type Config struct {
	Native    language.Language
	Target    language.Language
	Live      live.Config
	QueueSize int
}

// NewConfig builds the channel configuration for a language pair.
func NewConfig(native, target language.Language) Config {
	return Config{
		Native:    native,
		Target:    target,
		Live:      live.DefaultConfig(native.Name, target.Name),
		QueueSize: DefaultQueueSize,
	}
}

// Deps are the collaborators a session drives.
type Deps struct {
	Dialer     live.Dialer
	Microphone capture.Microphone
	Output     playback.Output
	Sink       Sink // optional
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// Session is the orchestrator. All state is guarded by mu; transport,
// capture and playback callbacks are bound to the generation that created
// them and become no-ops once that generation is torn down.
type Session struct {
	cfg     Config
	deps    Deps
	metrics *metrics.Metrics
	turns   *turn.Generator

	mu         sync.Mutex
	gen        uint64
	id         string
	logger     zerolog.Logger
	status     Status
	errMsg     string
	transcript *transcript.Transcript
	tracker    *turn.Tracker
	startedAt  time.Time

	handle    live.Handle
	stream    capture.Stream
	pipeline  *capture.Pipeline
	capturing bool
	scheduler *playback.Scheduler
	pending   []codec.Blob

	subs    map[int]chan Snapshot
	nextSub int
}

// New creates an idle session.
func New(cfg Config, deps Deps) *Session {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Session{
		cfg:        cfg,
		deps:       deps,
		metrics:    m,
		turns:      turn.NewGenerator(),
		logger:     deps.Logger,
		transcript: transcript.New(),
		tracker:    turn.NewTracker(""),
		subs:       make(map[int]chan Snapshot),
	}
}

// StartSession acquires the microphone, opens the channel and begins
// capture once the channel reports open. It returns after Connect returns;
// status changes that follow are observed through Status or Subscribe.
func (s *Session) StartSession(ctx context.Context) error {
	s.mu.Lock()
	if s.status.IsActive() {
		s.mu.Unlock()
		return ErrActive
	}
	s.gen++
	gen := s.gen
	s.id = uuid.NewString()
	s.logger = s.deps.Logger.With().Str("sessionId", s.id).Logger()
	s.errMsg = ""
	s.transcript.Reset()
	s.tracker.Reset(s.turns.Next(s.id))
	s.startedAt = time.Now()
	s.status = StatusConnecting
	s.noteLocked(msgConnecting)
	s.metrics.RecordSessionStart()
	s.logger.Info().
		Str("native", s.cfg.Native.Code).
		Str("target", s.cfg.Target.Code).
		Msg("Starting session")
	s.notifyLocked()
	s.mu.Unlock()

	stream, err := s.deps.Microphone.Open(ctx)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
		return ErrEnded
	}
	if err != nil {
		s.failLocked(fmt.Sprintf("Failed to start session: %v. Please allow microphone access.", err), "permission")
		s.mu.Unlock()
		return err
	}
	s.stream = stream
	s.pipeline = capture.NewPipeline(s.logger)
	s.scheduler = playback.NewScheduler(s.deps.Output, func() { s.onPlaybackIdle(gen) })
	s.mu.Unlock()

	start := time.Now()
	h, err := s.deps.Dialer.Connect(ctx, s.cfg.Live, &callback{s: s, gen: gen})

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		if h != nil {
			h.Close()
		}
		if s.status == StatusError {
			return errors.New(s.errMsg)
		}
		return ErrEnded
	}
	if err != nil {
		s.failLocked(fmt.Sprintf("An error occurred: %v", err), "connect")
		return err
	}
	s.logger.Info().Dur("connect", time.Since(start)).Msg("Channel connected")

	s.handle = h
	for _, frame := range s.pending {
		s.sendLocked(frame)
	}
	s.pending = nil
	return nil
}

// EndSession tears everything down and returns to Idle. Legal from any
// state; idempotent.
func (s *Session) EndSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := s.status.IsActive()
	s.teardownLocked()
	s.status = StatusIdle
	if wasActive {
		s.metrics.RecordSessionEnd("", time.Since(s.startedAt).Seconds())
		s.logger.Info().Int("entries", s.transcript.Len()).Msg("Session ended")
	}
	s.notifyLocked()
}

// teardownLocked releases every resource of the current generation.
func (s *Session) teardownLocked() {
	s.gen++

	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close channel")
		}
		s.handle = nil
	}
	if s.pipeline != nil {
		s.pipeline.Stop()
		s.pipeline = nil
	}
	if s.stream != nil && !s.capturing {
		if err := s.stream.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release microphone")
		}
	}
	s.stream = nil
	s.capturing = false
	if s.scheduler != nil {
		s.scheduler.Close()
		s.scheduler = nil
	}
	s.pending = nil
	s.tracker.Drop()
}

// failLocked surfaces msg, tears down and enters Error.
func (s *Session) failLocked(msg, reason string) {
	s.logger.Error().Str("reason", reason).Msg(msg)
	s.errMsg = msg
	s.noteLocked(msg)
	s.teardownLocked()
	s.status = StatusError
	s.metrics.RecordSessionEnd(reason, time.Since(s.startedAt).Seconds())
	s.notifyLocked()
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the message of the last failure, if any.
func (s *Session) Err() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg, s.errMsg != ""
}

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []transcript.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Entries()
}

// ID returns the current (or last) session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// callback adapts live.Callback to a session generation.
type callback struct {
	s   *Session
	gen uint64
}

func (c *callback) OnOpen()                  { c.s.onOpen(c.gen) }
func (c *callback) OnMessage(m live.Message) { c.s.onMessage(c.gen, m) }
func (c *callback) OnError(err error)        { c.s.onError(c.gen, err) }
func (c *callback) OnClose()                 { c.s.onClose(c.gen) }

func (s *Session) onOpen(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	s.noteLocked(msgEstablished)
	s.status = StatusListening

	if err := s.pipeline.Start(s.stream, func(frame codec.Blob) { s.onFrame(gen, frame) }); err != nil {
		s.failLocked(fmt.Sprintf("An error occurred: %v", err), "capture")
		return
	}
	s.capturing = true
	s.logger.Info().Msg("Channel open, capturing")
	s.notifyLocked()
}

func (s *Session) onFrame(gen uint64, frame codec.Blob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	if s.handle == nil {
		if len(s.pending) >= s.cfg.QueueSize {
			s.pending = s.pending[1:]
			s.metrics.RecordFrameDropped("queue_full")
		}
		s.pending = append(s.pending, frame)
		s.metrics.RecordFrameQueued()
		return
	}
	s.sendLocked(frame)
}

func (s *Session) sendLocked(frame codec.Blob) {
	if err := s.handle.Send(frame); err != nil {
		s.metrics.RecordFrameDropped("send")
		s.logger.Debug().Err(err).Msg("Dropped outbound frame")
		return
	}
	s.metrics.RecordFrameSent()
}

func (s *Session) onMessage(gen uint64, msg live.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.dispatch(msg)
	s.notifyLocked()
}

func (s *Session) onError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.failLocked(fmt.Sprintf("An error occurred: %v", err), "channel")
}

// onClose treats a close the session did not ask for as a channel failure.
func (s *Session) onClose(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.status.IsActive() {
		return
	}
	s.failLocked(fmt.Sprintf("An error occurred: %v", errRemoteClosed), "closed")
}

func (s *Session) onPlaybackIdle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.status.IsActive() || s.status == StatusConnecting {
		return
	}
	if s.status != StatusListening {
		s.status = StatusListening
		s.notifyLocked()
	}
}

var _ live.Callback = (*callback)(nil)
