package codec

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"nil", nil},
		{"single byte", []byte{0x7f}},
		{"two bytes", []byte{0x00, 0xff}},
		{"pcm frame", []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}},
		{"all byte values", allBytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(Encode(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Errorf("round trip mismatch: got %v, want %v", got, tt.input)
			}
		})
	}
}

func allBytes() []byte {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestDecode_InvalidInput(t *testing.T) {
	if _, err := Decode("not base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestDecodeAudioData_SampleCountAndRange(t *testing.T) {
	// 0, 16384, -32768, 32767
	b := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80, 0xff, 0x7f}

	unit, err := DecodeAudioData(b, OutputSampleRate, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unit.Samples) != len(b)/2 {
		t.Fatalf("expected %d samples, got %d", len(b)/2, len(unit.Samples))
	}

	want := []float32{0, 0.5, -1, 32767.0 / 32768.0}
	for i, s := range unit.Samples {
		if s != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, s, want[i])
		}
		if s < -1 || s > 1 {
			t.Errorf("sample %d out of range: %v", i, s)
		}
	}
	if unit.SampleRate != OutputSampleRate || unit.Channels != 1 {
		t.Errorf("unexpected format: rate=%d channels=%d", unit.SampleRate, unit.Channels)
	}
}

func TestDecodeAudioData_OddLength(t *testing.T) {
	_, err := DecodeAudioData([]byte{0x01, 0x02, 0x03}, OutputSampleRate, 1)
	if err == nil {
		t.Fatal("expected error for odd byte length")
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if decErr.Length != 3 {
		t.Errorf("expected length 3, got %d", decErr.Length)
	}
}

func TestDecodeAudioData_InvalidFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		rate     int
		channels int
	}{
		{"zero rate", []byte{0, 0}, 0, 1},
		{"zero channels", []byte{0, 0}, 24000, 0},
		{"samples not divisible by channels", []byte{0, 0, 0, 0, 0, 0}, 24000, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAudioData(tt.data, tt.rate, tt.channels)
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Errorf("expected *DecodeError, got %v", err)
			}
		})
	}
}

func TestDecodeAudioData_Empty(t *testing.T) {
	unit, err := DecodeAudioData(nil, OutputSampleRate, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unit.Frames() != 0 || unit.Duration() != 0 {
		t.Errorf("expected empty unit, got frames=%d duration=%v", unit.Frames(), unit.Duration())
	}
}

func TestPlaybackUnit_Duration(t *testing.T) {
	unit := &PlaybackUnit{Samples: make([]float32, 48000), SampleRate: 24000, Channels: 1}
	if unit.Duration() != 2*time.Second {
		t.Errorf("expected 2s, got %v", unit.Duration())
	}

	stereo := &PlaybackUnit{Samples: make([]float32, 48000), SampleRate: 24000, Channels: 2}
	if stereo.Frames() != 24000 {
		t.Errorf("expected 24000 frames, got %d", stereo.Frames())
	}
	if stereo.Duration() != time.Second {
		t.Errorf("expected 1s, got %v", stereo.Duration())
	}
}

func TestEncodePCM16_Scaling(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"negative half", -0.5, -16384},
		{"minus one", -1, -32768},
		{"truncates toward zero", 0.00001, 0},
		// No clamping: 1.0 * 32768 overflows int16 and wraps.
		{"one wraps", 1, -32768},
		{"above one wraps", 1.5, -16384},
		{"below minus one wraps", -1.5, 16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := EncodePCM16([]float32{tt.sample})
			if len(b) != 2 {
				t.Fatalf("expected 2 bytes, got %d", len(b))
			}
			got := int16(uint16(b[0]) | uint16(b[1])<<8)
			if got != tt.want {
				t.Errorf("EncodePCM16(%v) = %d, want %d", tt.sample, got, tt.want)
			}
		})
	}
}

func TestEncodeFrame(t *testing.T) {
	samples := []float32{0, 0.25, -0.25}
	blob := EncodeFrame(samples)

	if blob.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("unexpected mime type %q", blob.MIMEType)
	}

	raw, err := Decode(blob.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	unit, err := DecodeAudioData(raw, InputSampleRate, 1)
	if err != nil {
		t.Fatalf("decode audio: %v", err)
	}
	for i, s := range unit.Samples {
		if s != samples[i] {
			t.Errorf("sample %d: got %v, want %v", i, s, samples[i])
		}
	}
}
