package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultPlaybackSampleRate is the rate the live model answers with.
	DefaultPlaybackSampleRate = 24000
	// DefaultCaptureSampleRate is the rate the live model expects for microphone input.
	DefaultCaptureSampleRate = 16000

	pcm16NegativeScale = 32768
	pcm16PositiveScale = 32767
	pcm16DecodeDivisor = 32768.0
)

var ErrDecode = errors.New("audio decode failed")

// DecodeBase64ToBytes decodes standard, padded Base64 text.
func DecodeBase64ToBytes(text string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %w", ErrDecode, err)
	}
	return b, nil
}

func EncodeBytesToBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// FloatSamplesToPCM16 clamps every sample to [-1, 1] and scales it into the
// signed 16-bit range. Negative samples scale by 32768, the rest by 32767;
// the fractional part is truncated.
func FloatSamplesToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = floatToPCM16(s)
	}
	return out
}

func floatToPCM16(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(1, v))
	if v < 0 {
		return int16(v * pcm16NegativeScale)
	}
	return int16(v * pcm16PositiveScale)
}

// DecodePCMToAudioBuffer reads little-endian signed 16-bit samples and
// returns a mono buffer at sampleRate. Each sample is divided by 32768
// regardless of sign. A trailing odd byte is ignored.
func DecodePCMToAudioBuffer(pcm []byte, sampleRate int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = DefaultPlaybackSampleRate
	}
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(float64(v) / pcm16DecodeDivisor)
	}
	return &Buffer{
		SampleRate: sampleRate,
		Channels:   1,
		Samples:    samples,
	}
}

// PCM16ToBytes serializes samples as little-endian pairs, the layout the
// live model accepts as audio/pcm.
func PCM16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToFloatSamples decodes little-endian IEEE-754 float32 frames as sent
// by browser capture worklets.
func BytesToFloatSamples(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: f32le payload length %d is not a multiple of 4", ErrDecode, len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
