package transcriber

import (
	"github.com/foxseedlab/suma/internal/config"
	"github.com/foxseedlab/suma/internal/transcriber"
	"github.com/samber/do/v2"
)

// RegisterDI provides a Transcriber only when user speech goes to Cloud
// Speech; otherwise the live model transcribes and nothing is registered.
func RegisterDI(injector do.Injector) {
	cfg := do.MustInvoke[*config.Config](injector)
	if !cfg.UsesCloudSpeech() {
		return
	}
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewCloudSpeechTranscriber(CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Language:        c.TranscribeLanguage,
			Location:        c.GoogleCloudSpeechLocation,
			Model:           c.GoogleCloudSpeechModel,
		}), nil
	})
}
