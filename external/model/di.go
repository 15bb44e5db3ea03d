package model

import (
	"context"
	"fmt"

	"github.com/foxseedlab/suma/internal/config"
	"github.com/foxseedlab/suma/internal/model"
	"github.com/samber/do/v2"
	"google.golang.org/genai"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*genai.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	})
	do.Provide(injector, func(i do.Injector) (model.LiveModel, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client := do.MustInvoke[*genai.Client](i)
		return NewGeminiLive(client, cfg.GeminiLiveModel), nil
	})
	do.Provide(injector, func(i do.Injector) (model.ChatModel, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client := do.MustInvoke[*genai.Client](i)
		return NewGeminiChatModel(client, cfg.GeminiSupportModel, cfg.SupportTemperature), nil
	})
}
