// Package device provides concrete audio capture and playback backends.
package device

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/service/capture"
	"ai-voice-tutor/internal/service/codec"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

const formatPCM = 1

// WAVFormat is the fmt chunk of a canonical WAV header.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ReadWAVHeader reads and validates a 44-byte PCM WAV header.
func ReadWAVHeader(r io.Reader) (WAVFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return WAVFormat{}, fmt.Errorf("read WAV header: %w", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVFormat{}, errors.New("not a valid WAV file")
	}

	f := WAVFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != formatPCM {
		return f, errors.New("only PCM format supported")
	}
	return f, nil
}

// WriteWAVHeader writes a canonical header for dataLen bytes of 16-bit PCM.
func WriteWAVHeader(w io.Writer, sampleRate, channels int, dataLen uint32) error {
	header := make([]byte, wavHeaderSize)
	blockAlign := channels * 2

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)

	_, err := w.Write(header)
	return err
}

// WAVMicrophone replays a 16 kHz 16-bit mono WAV file as if it were a live
// microphone.
type WAVMicrophone struct {
	Path string
	// Realtime paces reads to the file's sample rate.
	Realtime bool
	Logger   zerolog.Logger
}

// Open implements capture.Microphone. A missing or unsupported file is
// reported as *capture.PermissionError.
func (m *WAVMicrophone) Open(ctx context.Context) (capture.Stream, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, &capture.PermissionError{Device: m.Path, Err: err}
	}

	format, err := ReadWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, &capture.PermissionError{Device: m.Path, Err: err}
	}
	if format.Channels != 1 || format.BitsPerSample != 16 || format.SampleRate != codec.InputSampleRate {
		f.Close()
		return nil, &capture.PermissionError{
			Device: m.Path,
			Err: fmt.Errorf("expected %d Hz 16-bit mono, got %d Hz %d-bit %d channels",
				codec.InputSampleRate, format.SampleRate, format.BitsPerSample, format.Channels),
		}
	}

	m.Logger.Info().
		Str("path", m.Path).
		Uint32("sampleRate", format.SampleRate).
		Bool("realtime", m.Realtime).
		Msg("Opened WAV input")

	return &wavStream{
		f:        f,
		rate:     int(format.SampleRate),
		realtime: m.Realtime,
		done:     make(chan struct{}),
	}, nil
}

type wavStream struct {
	f        *os.File
	rate     int
	realtime bool
	raw      []byte

	started time.Time
	read    int64

	closeOnce sync.Once
	done      chan struct{}
}

func (s *wavStream) ReadSamples(buf []float32) (int, error) {
	select {
	case <-s.done:
		return 0, io.EOF
	default:
	}

	if s.started.IsZero() {
		s.started = time.Now()
	}
	if s.realtime {
		due := s.started.Add(time.Duration(s.read) * time.Second / time.Duration(s.rate))
		if wait := time.Until(due); wait > 0 {
			select {
			case <-time.After(wait):
			case <-s.done:
				return 0, io.EOF
			}
		}
	}

	if cap(s.raw) < len(buf)*2 {
		s.raw = make([]byte, len(buf)*2)
	}
	raw := s.raw[:len(buf)*2]
	n, err := io.ReadFull(s.f, raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
	}
	s.read += int64(samples)
	return samples, err
}

func (s *wavStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.f.Close()
	})
	return err
}

// WAVRecorder writes played audio to a 16-bit mono WAV file.
type WAVRecorder struct {
	mu      sync.Mutex
	f       *os.File
	rate    int
	written uint32
	closed  bool
}

// NewWAVRecorder creates path and reserves its header.
func NewWAVRecorder(path string) (*WAVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteWAVHeader(f, codec.OutputSampleRate, 1, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &WAVRecorder{f: f, rate: codec.OutputSampleRate}, nil
}

// Write implements playback.Sink.
func (r *WAVRecorder) Write(unit *codec.PlaybackUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return os.ErrClosed
	}
	if unit.SampleRate != r.rate || unit.Channels != 1 {
		return fmt.Errorf("recorder expects %d Hz mono, got %d Hz %d channels", r.rate, unit.SampleRate, unit.Channels)
	}
	n, err := r.f.Write(codec.EncodePCM16(unit.Samples))
	r.written += uint32(n)
	return err
}

// Close patches the header with the final sizes.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		r.f.Close()
		return err
	}
	if err := WriteWAVHeader(r.f, r.rate, 1, r.written); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// Discard is a sink that drops everything.
type Discard struct{}

func (Discard) Write(*codec.PlaybackUnit) error { return nil }

func (Discard) Close() error { return nil }
