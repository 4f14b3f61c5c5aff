// Package capture slices a live microphone stream into fixed-size PCM frames
// and hands them, encoded for transport, to a send callback.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/service/codec"
)

// FrameSize is the number of mono samples per outbound frame.
const FrameSize = 4096

// ErrAlreadyStarted is returned when Start is called on a running pipeline.
var ErrAlreadyStarted = errors.New("capture: pipeline already started")

// Stream is a live mono input at codec.InputSampleRate.
type Stream interface {
	// ReadSamples fills buf with float samples in [-1, 1] and returns how many
	// were written. It returns io.EOF when the input has ended.
	ReadSamples(buf []float32) (int, error)

	// Close stops the underlying device and releases it.
	Close() error
}

// Microphone acquires the audio capture device.
type Microphone interface {
	// Open requests access to the input device and starts it.
	// Failures are returned as *PermissionError.
	Open(ctx context.Context) (Stream, error)
}

// PermissionError reports that the capture device could not be acquired
// (access denied, no device, missing backend).
type PermissionError struct {
	Device string
	Err    error
}

func (e *PermissionError) Error() string {
	if e.Device == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Device, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// SendFunc receives each encoded frame.
type SendFunc func(frame codec.Blob)

// Pipeline reads frames from a Stream on a background goroutine.
//
// Stop never waits for the reader, so it is safe to call while holding a lock
// that SendFunc also acquires.
type Pipeline struct {
	logger zerolog.Logger

	mu      sync.Mutex
	stream  Stream
	started bool
	stopped atomic.Bool
	done    chan struct{}
	frames  atomic.Int64
}

// NewPipeline creates an idle pipeline.
func NewPipeline(logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With().Str("component", "capture").Logger(),
		done:   make(chan struct{}),
	}
}

// Start begins reading stream and delivering frames to send.
func (p *Pipeline) Start(stream Stream, send SendFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.stopped.Load() {
		return errors.New("capture: pipeline stopped")
	}
	p.started = true
	p.stream = stream

	go p.run(stream, send)
	return nil
}

func (p *Pipeline) run(stream Stream, send SendFunc) {
	defer close(p.done)

	buf := make([]float32, FrameSize)
	for {
		n, err := readFrame(stream, buf)
		if p.stopped.Load() {
			return
		}
		if n > 0 {
			// Short tail at end of input: pad with silence.
			for i := n; i < FrameSize; i++ {
				buf[i] = 0
			}
			p.frames.Add(1)
			send(codec.EncodeFrame(buf))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Info().Int64("frames", p.frames.Load()).Msg("Capture input ended")
			} else {
				p.logger.Error().Err(err).Int64("frames", p.frames.Load()).Msg("Capture read failed")
			}
			return
		}
	}
}

// readFrame fills buf completely unless the stream ends or fails first.
func readFrame(stream Stream, buf []float32) (int, error) {
	filled := 0
	for filled < len(buf) {
		n, err := stream.ReadSamples(buf[filled:])
		filled += n
		if err != nil {
			return filled, err
		}
		if n == 0 {
			return filled, io.ErrNoProgress
		}
	}
	return filled, nil
}

// Stop disconnects the reader and releases the stream. Idempotent.
func (p *Pipeline) Stop() {
	if p.stopped.Swap(true) {
		return
	}

	p.mu.Lock()
	stream := p.stream
	started := p.started
	p.stream = nil
	p.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to close capture stream")
		}
	}
	if !started {
		close(p.done)
	}
}

// Done is closed once the reader has exited, or immediately after Stop when
// the pipeline never started.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Frames returns the number of frames delivered so far.
func (p *Pipeline) Frames() int64 {
	return p.frames.Load()
}
