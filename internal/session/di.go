package session

import (
	"github.com/foxseedlab/suma/internal/audio"
	"github.com/foxseedlab/suma/internal/config"
	"github.com/foxseedlab/suma/internal/discord"
	"github.com/foxseedlab/suma/internal/metrics"
	"github.com/foxseedlab/suma/internal/model"
	"github.com/foxseedlab/suma/internal/repository"
	"github.com/foxseedlab/suma/internal/transcriber"
	"github.com/foxseedlab/suma/internal/triage"
	"github.com/foxseedlab/suma/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		var stt transcriber.Transcriber
		if cfg.UsesCloudSpeech() {
			stt = do.MustInvoke[transcriber.Transcriber](i)
		}
		return NewManager(Dependencies{
			Config:      cfg,
			Repository:  do.MustInvoke[repository.Repository](i),
			Catalog:     do.MustInvoke[*triage.Catalog](i),
			LiveModel:   do.MustInvoke[model.LiveModel](i),
			Transcriber: stt,
			Webhook:     do.MustInvoke[webhook.Sender](i),
			Discord:     do.MustInvoke[discord.Client](i),
			NewDecoder:  do.MustInvoke[audio.PacketDecoderFactory](i),
			Metrics:     do.MustInvoke[*metrics.Metrics](i),
		}), nil
	})
}
