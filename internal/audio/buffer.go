package audio

import (
	"math"
	"time"
)

// Buffer is a playable block of mono float samples.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Peak returns the maximum absolute amplitude, in [0, 1].
func (b *Buffer) Peak() float64 {
	if b == nil {
		return 0
	}
	var peak float64
	for _, s := range b.Samples {
		abs := math.Abs(float64(s))
		if abs > peak {
			peak = abs
		}
	}
	return peak
}
