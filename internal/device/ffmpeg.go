package device

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/service/capture"
	"ai-voice-tutor/internal/service/codec"
)

// ErrNoBackend is wrapped when the ffmpeg binaries are not installed.
var ErrNoBackend = errors.New("audio backend not found")

// inputFormat returns the ffmpeg capture demuxer and default device for
// the host platform.
func inputFormat() (string, string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// FFmpegMicrophone captures the system input device through ffmpeg as
// mono float samples at codec.InputSampleRate.
type FFmpegMicrophone struct {
	Binary string // defaults to "ffmpeg"
	Format string // ffmpeg input format; defaults per platform
	Device string // input device; defaults per platform
	Logger zerolog.Logger
}

func (m *FFmpegMicrophone) args() []string {
	format, device := inputFormat()
	if m.Format != "" {
		format = m.Format
	}
	if m.Device != "" {
		device = m.Device
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", format, "-i", device,
		"-ac", "1", "-ar", strconv.Itoa(codec.InputSampleRate),
		"-f", "f32le", "-",
	}
}

// Open implements capture.Microphone.
func (m *FFmpegMicrophone) Open(ctx context.Context) (capture.Stream, error) {
	bin := m.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, &capture.PermissionError{Device: bin, Err: fmt.Errorf("%w: %v", ErrNoBackend, err)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Not bound to ctx: the device outlives the request that opened it.
	cmd := exec.Command(path, m.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &capture.PermissionError{Device: bin, Err: err}
	}
	stderr := &tailBuffer{max: 512}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, &capture.PermissionError{Device: bin, Err: err}
	}

	m.Logger.Info().Strs("args", cmd.Args[1:]).Int("pid", cmd.Process.Pid).Msg("Microphone capture started")

	return &ffmpegStream{
		cmd:    cmd,
		r:      bufio.NewReaderSize(stdout, 4*codec.InputSampleRate),
		stderr: stderr,
	}, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	r      *bufio.Reader
	raw    []byte
	stderr *tailBuffer

	closeOnce sync.Once
}

func (s *ffmpegStream) ReadSamples(buf []float32) (int, error) {
	if cap(s.raw) < len(buf)*4 {
		s.raw = make([]byte, len(buf)*4)
	}
	raw := s.raw[:len(buf)*4]

	n, err := io.ReadAtLeast(s.r, raw, 4)
	if rem := n % 4; rem != 0 && err == nil {
		// Finish the sample a pipe read split.
		var m int
		m, err = io.ReadFull(s.r, raw[n:n+4-rem])
		n += m
	}
	n -= n % 4
	for i := 0; i < n/4; i++ {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	if err != nil {
		if msg := s.stderr.String(); msg != "" {
			return n / 4, fmt.Errorf("ffmpeg: %s", msg)
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
	}
	return n / 4, err
}

func (s *ffmpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			err = s.cmd.Process.Kill()
		}
		// Reap the process; the kill makes Wait report a signal.
		go s.cmd.Wait()
	})
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// FFplaySpeaker plays samples through ffplay.
type FFplaySpeaker struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger zerolog.Logger
	closed bool
}

// NewFFplaySpeaker starts ffplay reading mono f32le at codec.OutputSampleRate
// from stdin.
func NewFFplaySpeaker(bin string, logger zerolog.Logger) (*FFplaySpeaker, error) {
	if bin == "" {
		bin = "ffplay"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}

	cmd := exec.Command(path,
		"-hide_banner", "-loglevel", "error", "-nodisp", "-autoexit",
		"-f", "f32le", "-ar", strconv.Itoa(codec.OutputSampleRate), "-ch_layout", "mono",
		"-i", "-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}
	logger.Info().Int("pid", cmd.Process.Pid).Msg("Speaker started")

	return &FFplaySpeaker{cmd: cmd, stdin: stdin, logger: logger}, nil
}

// Write implements playback.Sink.
func (s *FFplaySpeaker) Write(unit *codec.PlaybackUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}

	out := make([]byte, len(unit.Samples)*4)
	for i, v := range unit.Samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	_, err := s.stdin.Write(out)
	return err
}

// Close stops the player.
func (s *FFplaySpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stdin.Close()
	if err := s.cmd.Process.Kill(); err != nil {
		s.logger.Debug().Err(err).Msg("Speaker already exited")
	}
	go s.cmd.Wait()
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
