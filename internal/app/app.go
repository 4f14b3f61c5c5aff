package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/config"
	"ai-voice-tutor/internal/device"
	"ai-voice-tutor/internal/events"
	"ai-voice-tutor/internal/language"
	"ai-voice-tutor/internal/observability/logging"
	"ai-voice-tutor/internal/observability/metrics"
	"ai-voice-tutor/internal/service/capture"
	"ai-voice-tutor/internal/service/live"
	"ai-voice-tutor/internal/service/live/bidi"
	"ai-voice-tutor/internal/service/live/gemini"
	"ai-voice-tutor/internal/service/live/mock"
	"ai-voice-tutor/internal/service/playback"
	"ai-voice-tutor/internal/service/session"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Metrics     *metrics.Metrics

	Session   *session.Session
	Publisher *events.Publisher

	closers []io.Closer
}

// New validates cfg and wires the session with its devices, channel and
// event publisher.
func New(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	native, target, err := language.Pair(cfg.Tutor.NativeLanguage, cfg.Tutor.TargetLanguage)
	if err != nil {
		return nil, err
	}

	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
		Logger:  logging.WithComponent("application"),
	}

	sink, closer, err := NewSink(cfg.Audio, a.Logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.Publisher = events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
		Async:        true,
	})

	sessCfg := session.NewConfig(native, target)
	sessCfg.Live.Model = cfg.Live.Model
	sessCfg.Live.Voice = cfg.Live.Voice
	sessCfg.QueueSize = cfg.Tutor.QueueSize

	a.Session = session.New(sessCfg, session.Deps{
		Dialer:     NewDialer(cfg.Live, a.Logger),
		Microphone: NewMicrophone(cfg.Audio, a.Logger),
		Output:     playback.NewTimelineOutput(sink, a.Logger),
		Sink:       a.Publisher,
		Logger:     logging.WithComponent("session"),
		Metrics:    a.Metrics,
	})

	a.Logger.Info().
		Str("transport", cfg.Live.Transport).
		Str("native", native.Code).
		Str("target", target.Code).
		Str("input", cfg.Audio.Input).
		Str("output", cfg.Audio.Output).
		Msg("AI voice tutor application created")
	return a, nil
}

// NewDialer selects the live channel transport.
func NewDialer(cfg config.LiveConfig, logger zerolog.Logger) live.Dialer {
	switch cfg.Transport {
	case config.TransportGemini:
		return gemini.New(cfg.APIKey, logger).WithQueueLen(cfg.QueueLen)
	case config.TransportWebsocket:
		d := bidi.New(cfg.Endpoint, cfg.APIKey, logger).WithQueueLen(cfg.QueueLen)
		if cfg.ConnectTimeout > 0 {
			d.HandshakeTimeout = cfg.ConnectTimeout
		}
		return d
	default:
		return mock.New(mock.DefaultOptions(), logger)
	}
}

// NewMicrophone selects the capture device: "mic" or a WAV file path.
func NewMicrophone(cfg config.AudioConfig, logger zerolog.Logger) capture.Microphone {
	if cfg.Input == "" || cfg.Input == "mic" {
		return &device.FFmpegMicrophone{Device: cfg.InputDevice, Logger: logger}
	}
	return &device.WAVMicrophone{Path: cfg.Input, Realtime: true, Logger: logger}
}

// NewSink selects the playback sink: "speaker", "none" or a WAV file path.
// A missing speaker backend degrades to no output.
func NewSink(cfg config.AudioConfig, logger zerolog.Logger) (playback.Sink, io.Closer, error) {
	switch strings.ToLower(cfg.Output) {
	case "none", "":
		return device.Discard{}, nil, nil
	case "speaker":
		sp, err := device.NewFFplaySpeaker("", logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Speaker unavailable, discarding tutor audio")
			return device.Discard{}, nil, nil
		}
		return sp, sp, nil
	default:
		rec, err := device.NewWAVRecorder(cfg.Output)
		if err != nil {
			return nil, nil, err
		}
		return rec, rec, nil
	}
}

// Ready reports whether the service can take traffic: the session has not
// failed.
func (a *Application) Ready() bool {
	return a.Session.Status() != session.StatusError
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("AI voice tutor starting")

	return nil
}

// Shutdown ends the session and releases devices and writers.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.Session.EndSession()
	if err := a.Publisher.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Failed to close publisher")
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close device")
		}
	}

	shutdownLogger.Info().Msg("AI voice tutor shutting down")
}
