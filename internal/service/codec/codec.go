// Package codec converts between raw PCM audio, its transport-safe text
// encoding, and playable float sample buffers.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// InputSampleRate is the rate of microphone audio sent to the model.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of synthesized speech received from the model.
	OutputSampleRate = 24000
	// InputMIMEType describes every outbound audio frame.
	InputMIMEType = "audio/pcm;rate=16000"

	bytesPerSample = 2
)

// Blob is encoded audio in its wire form.
type Blob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// DecodeError reports a PCM payload that cannot be interpreted as samples.
type DecodeError struct {
	Length int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: cannot decode %d byte PCM payload: %s", e.Length, e.Reason)
}

// Encode returns the base64 form of b.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode is the exact inverse of Encode.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("codec: decode base64: %w", err)
	}
	return b, nil
}

// PlaybackUnit is a decoded, playable audio buffer.
// Samples are interleaved when Channels > 1.
type PlaybackUnit struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (u *PlaybackUnit) Frames() int {
	if u == nil || u.Channels <= 0 {
		return 0
	}
	return len(u.Samples) / u.Channels
}

// Duration returns how long the unit sounds.
func (u *PlaybackUnit) Duration() time.Duration {
	if u == nil || u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(u.Frames()) * time.Second / time.Duration(u.SampleRate)
}

// DecodeAudioData interprets b as signed 16-bit little-endian PCM and
// normalizes every sample into [-1.0, 1.0).
func DecodeAudioData(b []byte, sampleRate, channels int) (*PlaybackUnit, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, &DecodeError{Length: len(b), Reason: fmt.Sprintf("invalid format rate=%d channels=%d", sampleRate, channels)}
	}
	if len(b)%bytesPerSample != 0 {
		return nil, &DecodeError{Length: len(b), Reason: "odd trailing byte"}
	}
	n := len(b) / bytesPerSample
	if n%channels != 0 {
		return nil, &DecodeError{Length: len(b), Reason: fmt.Sprintf("%d samples do not split into %d channels", n, channels)}
	}

	samples := make([]float32, n)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(b[i*bytesPerSample:]))
		samples[i] = float32(v) / 32768.0
	}
	return &PlaybackUnit{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

// EncodePCM16 scales float samples by 32768 into 16-bit little-endian PCM.
// Samples outside [-1, 1] are not clamped: the integer value wraps.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		v := int16(int32(s * 32768))
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(v))
	}
	return out
}

// EncodeFrame packs float samples into an outbound 16 kHz PCM blob.
func EncodeFrame(samples []float32) Blob {
	return Blob{
		Data:     Encode(EncodePCM16(samples)),
		MIMEType: InputMIMEType,
	}
}
