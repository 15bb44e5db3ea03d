//go:build !opus

package audio

import "github.com/foxseedlab/suma/internal/audio"

func NewOpusDecoder(_ int) (audio.PacketDecoder, error) {
	return nil, audio.ErrCodecUnavailable
}
