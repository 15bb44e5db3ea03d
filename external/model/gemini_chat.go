package model

import (
	"context"
	"fmt"

	"github.com/foxseedlab/suma/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

type GeminiChatModel struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiChatModel(client *genai.Client, modelName string, temperature float32) model.ChatModel {
	return &GeminiChatModel{
		client:      client,
		model:       modelName,
		temperature: temperature,
	}
}

func (m *GeminiChatModel) NewChat(ctx context.Context, systemInstruction string) (model.Chat, error) {
	temperature := m.temperature
	chat, err := m.client.Chats.Create(ctx, m.model, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       &temperature,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create gemini chat: %w", err)
	}
	return &geminiChat{chat: chat, model: m.model}, nil
}

type geminiChat struct {
	chat  *genai.Chat
	model string
}

func (c *geminiChat) Send(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "gemini.chat.send", trace.WithAttributes(
		attribute.String("gen_ai.request.model", c.model),
	))
	defer span.End()

	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return "", fmt.Errorf("send gemini chat message: %w", err)
	}
	return resp.Text(), nil
}
