package audio

import "errors"

var ErrCodecUnavailable = errors.New("audio codec is not available in this build")

// PacketDecoder turns compressed capture packets into mono float samples.
type PacketDecoder interface {
	DecodePacket(packet []byte) ([]float32, error)
	Close()
}

type PacketDecoderFactory func() (PacketDecoder, error)
