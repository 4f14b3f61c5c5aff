package capture

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/service/codec"
)

// sliceStream serves samples from memory in small reads, then io.EOF.
type sliceStream struct {
	mu      sync.Mutex
	samples []float32
	chunk   int
	closed  bool
}

func (s *sliceStream) ReadSamples(buf []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	if len(s.samples) == 0 {
		return 0, io.EOF
	}
	n := len(buf)
	if s.chunk > 0 && n > s.chunk {
		n = s.chunk
	}
	n = copy(buf[:n], s.samples)
	s.samples = s.samples[n:]
	return n, nil
}

func (s *sliceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// blockingStream blocks reads until closed, like a live microphone.
type blockingStream struct {
	closeOnce sync.Once
	closed    chan struct{}
	closes    int
	mu        sync.Mutex
}

func newBlockingStream() *blockingStream {
	return &blockingStream{closed: make(chan struct{})}
}

func (s *blockingStream) ReadSamples(buf []float32) (int, error) {
	<-s.closed
	return 0, io.EOF
}

func (s *blockingStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []codec.Blob
}

func (r *frameRecorder) send(frame codec.Blob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *frameRecorder) get() []codec.Blob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]codec.Blob(nil), r.frames...)
}

func waitDone(t *testing.T, p *Pipeline) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not finish")
	}
}

func TestPipeline_SlicesFixedSizeFrames(t *testing.T) {
	samples := make([]float32, FrameSize*2+100)
	for i := range samples {
		samples[i] = 0.5
	}
	stream := &sliceStream{samples: samples, chunk: 1000}
	rec := &frameRecorder{}

	p := NewPipeline(zerolog.Nop())
	if err := p.Start(stream, rec.send); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, p)

	frames := rec.get()
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames (last padded), got %d", len(frames))
	}
	for i, f := range frames {
		if f.MIMEType != "audio/pcm;rate=16000" {
			t.Errorf("frame %d: unexpected mime %q", i, f.MIMEType)
		}
		raw, err := codec.Decode(f.Data)
		if err != nil {
			t.Fatalf("frame %d: decode: %v", i, err)
		}
		if len(raw) != FrameSize*2 {
			t.Errorf("frame %d: expected %d bytes, got %d", i, FrameSize*2, len(raw))
		}
	}

	// Tail frame: 100 real samples then silence.
	raw, _ := codec.Decode(frames[2].Data)
	unit, _ := codec.DecodeAudioData(raw, codec.InputSampleRate, 1)
	if unit.Samples[99] != 0.5 {
		t.Errorf("expected sample 99 to be 0.5, got %v", unit.Samples[99])
	}
	if unit.Samples[100] != 0 {
		t.Errorf("expected padding after tail, got %v", unit.Samples[100])
	}
	if p.Frames() != 3 {
		t.Errorf("expected frame count 3, got %d", p.Frames())
	}
}

func TestPipeline_StartTwice(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	stream := newBlockingStream()
	if err := p.Start(stream, func(codec.Blob) {}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer p.Stop()

	if err := p.Start(stream, func(codec.Blob) {}); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestPipeline_StopReleasesStream(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	stream := newBlockingStream()
	rec := &frameRecorder{}

	if err := p.Start(stream, rec.send); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.Stop()
	waitDone(t, p)

	if stream.closes != 1 {
		t.Errorf("expected stream closed once, got %d", stream.closes)
	}
	if len(rec.get()) != 0 {
		t.Error("expected no frames after stop")
	}
}

func TestPipeline_StopIdempotent(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	stream := newBlockingStream()
	if err := p.Start(stream, func(codec.Blob) {}); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.Stop()
	p.Stop()
	p.Stop()
	waitDone(t, p)

	if stream.closes != 1 {
		t.Errorf("expected a single close, got %d", stream.closes)
	}
}

func TestPipeline_StopWithoutStart(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	p.Stop()
	waitDone(t, p)

	if err := p.Start(newBlockingStream(), func(codec.Blob) {}); err == nil {
		t.Error("expected start after stop to fail")
	}
}

func TestPermissionError(t *testing.T) {
	inner := errors.New("device busy")
	err := error(&PermissionError{Device: "default", Err: inner})

	if err.Error() != "default: device busy" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("expected PermissionError to unwrap")
	}

	bare := &PermissionError{Err: inner}
	if bare.Error() != "device busy" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}
