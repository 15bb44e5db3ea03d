package audio

import (
	"github.com/foxseedlab/suma/internal/audio"
	"github.com/foxseedlab/suma/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.PacketDecoderFactory, error) {
		c := do.MustInvoke[*config.Config](i)
		rate := c.LiveInputSampleRate
		return audio.PacketDecoderFactory(func() (audio.PacketDecoder, error) {
			return NewOpusDecoder(rate)
		}), nil
	})
}
