package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func TestBase64RoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	cases := [][]byte{
		{},
		{0x00},
		{0xff, 0xfe},
		[]byte("hola"),
		all,
	}
	for _, b := range cases {
		got, err := DecodeBase64ToBytes(EncodeBytesToBase64(b))
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", b, err)
		}
		if !bytes.Equal(got, b) {
			t.Fatalf("round trip mismatch: want %v, got %v", b, got)
		}
	}
}

func TestDecodeBase64ToBytes_Invalid(t *testing.T) {
	_, err := DecodeBase64ToBytes("not*base64")
	if err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestFloatSamplesToPCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{name: "clamp high", in: 2.0, want: 32767},
		{name: "clamp low", in: -2.0, want: -32768},
		{name: "midpoint", in: 0.0, want: 0},
		{name: "full positive", in: 1.0, want: 32767},
		{name: "full negative", in: -1.0, want: -32768},
		{name: "half positive truncates", in: 0.5, want: 16383},
		{name: "half negative", in: -0.5, want: -16384},
		{name: "nan", in: float32(math.NaN()), want: 0},
		{name: "positive infinity", in: float32(math.Inf(1)), want: 32767},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FloatSamplesToPCM16([]float32{tt.in})
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("FloatSamplesToPCM16(%v) = %v, want [%d]", tt.in, got, tt.want)
			}
		})
	}
}

func TestFloatSamplesToPCM16_PreservesLength(t *testing.T) {
	if got := FloatSamplesToPCM16(nil); len(got) != 0 {
		t.Fatalf("expected empty output, got %v", got)
	}
	in := make([]float32, 480)
	if got := FloatSamplesToPCM16(in); len(got) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(got))
	}
}

func TestDecodePCMToAudioBuffer(t *testing.T) {
	pcm := PCM16ToBytes([]int16{0, 16384, -32768, 32767})
	buf := DecodePCMToAudioBuffer(pcm, 0)

	if buf.SampleRate != DefaultPlaybackSampleRate {
		t.Fatalf("expected default sample rate %d, got %d", DefaultPlaybackSampleRate, buf.SampleRate)
	}
	if buf.Channels != 1 {
		t.Fatalf("expected mono, got %d channels", buf.Channels)
	}
	want := []float32{0, 0.5, -1, 0.999969482421875}
	if len(buf.Samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Samples))
	}
	for i := range want {
		if buf.Samples[i] != want[i] {
			t.Fatalf("sample %d: want %v, got %v", i, want[i], buf.Samples[i])
		}
	}
}

func TestDecodePCMToAudioBuffer_LengthAndOddTail(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 10, 11} {
		buf := DecodePCMToAudioBuffer(make([]byte, n), 16000)
		if buf.Len() != n/2 {
			t.Fatalf("%d bytes: expected %d samples, got %d", n, n/2, buf.Len())
		}
		if buf.SampleRate != 16000 {
			t.Fatalf("expected sample rate 16000, got %d", buf.SampleRate)
		}
	}
}

// Encoding scales positive samples by 32767 but decoding divides by 32768,
// so positive values come back slightly low while negatives are exact.
func TestPCMRoundTripBias(t *testing.T) {
	in := []float32{1.0, 0.5, 0.25, -0.25, -0.5, -1.0}
	want := []float32{
		0.999969482421875,
		0.499969482421875,
		0.249969482421875,
		-0.25,
		-0.5,
		-1.0,
	}
	buf := DecodePCMToAudioBuffer(PCM16ToBytes(FloatSamplesToPCM16(in)), DefaultPlaybackSampleRate)
	for i := range want {
		if buf.Samples[i] != want[i] {
			t.Fatalf("sample %d (%v): want %v, got %v", i, in[i], want[i], buf.Samples[i])
		}
	}
}

func TestPCM16ToBytes_LittleEndian(t *testing.T) {
	got := PCM16ToBytes([]int16{1, -2})
	want := []byte{0x01, 0x00, 0xfe, 0xff}
	if !bytes.Equal(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestBytesToFloatSamples(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-1.5))

	got, err := BytesToFloatSamples(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 0.25 || got[1] != -1.5 {
		t.Fatalf("unexpected samples: %v", got)
	}

	if _, err := BytesToFloatSamples(raw[:7]); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for truncated frame, got %v", err)
	}
}

func TestBuffer_DurationAndPeak(t *testing.T) {
	buf := &Buffer{SampleRate: 24000, Channels: 1, Samples: make([]float32, 12000)}
	buf.Samples[10] = -0.75
	buf.Samples[20] = 0.5

	if got := buf.Duration(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %v", got)
	}
	if got := buf.Peak(); got != 0.75 {
		t.Fatalf("expected peak 0.75, got %v", got)
	}

	var nilBuf *Buffer
	if nilBuf.Len() != 0 || nilBuf.Duration() != 0 || nilBuf.Peak() != 0 {
		t.Fatal("expected zero values for nil buffer")
	}
}
