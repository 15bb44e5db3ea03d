//go:build opus

package audio

import (
	"fmt"
	"sync"

	"github.com/foxseedlab/suma/internal/audio"
	"github.com/hraban/opus"
)

const (
	channels       = 1
	maxFrameSizeMs = 120
)

type OpusDecoder struct {
	mu         sync.Mutex
	dec        *opus.Decoder
	sampleRate int
	closed     bool
}

func NewOpusDecoder(sampleRate int) (audio.PacketDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, sampleRate: sampleRate}, nil
}

func (d *OpusDecoder) DecodePacket(packet []byte) ([]float32, error) {
	if len(packet) == 0 {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("opus decoder closed")
	}
	pcm := make([]float32, d.sampleRate*maxFrameSizeMs/1000*channels)
	n, err := d.dec.DecodeFloat32(packet, pcm)
	if err != nil {
		return nil, fmt.Errorf("decode opus packet: %w", err)
	}
	return pcm[:n*channels], nil
}

func (d *OpusDecoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.dec = nil
}
