package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"ai-voice-tutor/internal/config"
	"ai-voice-tutor/internal/device"
	"ai-voice-tutor/internal/service/live/bidi"
	"ai-voice-tutor/internal/service/live/gemini"
	"ai-voice-tutor/internal/service/live/mock"
	"ai-voice-tutor/internal/service/session"
)

func silenceWAV(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := device.WriteWAVHeader(&buf, 16000, 1, 3200); err != nil {
		t.Fatal(err)
	}
	buf.Write(make([]byte, 3200))

	path := filepath.Join(t.TempDir(), "silence.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Live.Transport = config.TransportMock
	cfg.Audio.Input = silenceWAV(t)
	cfg.Audio.Output = "none"
	return cfg
}

func TestNew(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.StartupTime.IsZero() {
		t.Error("expected startup time to be set")
	}
	if !a.Ready() {
		t.Error("expected a new application to be ready")
	}
	if a.Session.Status() != session.StatusIdle {
		t.Errorf("expected Idle, got %s", a.Session.Status())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"unknown language", func(c *config.Config) { c.Tutor.TargetLanguage = "xx-XX" }},
		{"same languages", func(c *config.Config) { c.Tutor.TargetLanguage = c.Tutor.NativeLanguage }},
		{"gemini without key", func(c *config.Config) {
			c.Live.Transport = config.TransportGemini
			c.Live.APIKey = ""
		}},
		{"unwritable output", func(c *config.Config) {
			c.Audio.Output = filepath.Join(t.TempDir(), "missing", "out.wav")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewDialer(t *testing.T) {
	tests := []struct {
		transport string
		check     func(any) bool
	}{
		{config.TransportMock, func(d any) bool { _, ok := d.(*mock.Dialer); return ok }},
		{config.TransportGemini, func(d any) bool { _, ok := d.(*gemini.Dialer); return ok }},
		{config.TransportWebsocket, func(d any) bool { _, ok := d.(*bidi.Dialer); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.transport, func(t *testing.T) {
			cfg := config.Default().Live
			cfg.Transport = tt.transport
			cfg.APIKey = "key"
			if d := NewDialer(cfg, zerolog.Nop()); !tt.check(d) {
				t.Errorf("unexpected dialer %T", d)
			}
		})
	}
}

func TestNewSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	sink, closer, err := NewSink(config.AudioConfig{Output: path}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if _, ok := sink.(*device.WAVRecorder); !ok {
		t.Errorf("expected WAV recorder, got %T", sink)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	sink, closer, err = NewSink(config.AudioConfig{Output: "none"}, zerolog.Nop())
	if err != nil || closer != nil {
		t.Fatalf("unexpected result %v, %v", closer, err)
	}
	if _, ok := sink.(device.Discard); !ok {
		t.Errorf("expected Discard, got %T", sink)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Shutdown()
	a.Shutdown()
	if a.Session.Status() != session.StatusIdle {
		t.Errorf("expected Idle, got %s", a.Session.Status())
	}
}
