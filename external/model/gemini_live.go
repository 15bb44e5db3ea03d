package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/foxseedlab/suma/internal/live"
	"github.com/foxseedlab/suma/internal/model"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

type liveSession interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type GeminiLive struct {
	model   string
	connect func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (liveSession, error)
}

func NewGeminiLive(client *genai.Client, modelName string) model.LiveModel {
	return &GeminiLive{
		model: modelName,
		connect: func(ctx context.Context, m string, cfg *genai.LiveConnectConfig) (liveSession, error) {
			return client.Live.Connect(ctx, m, cfg)
		},
	}
}

func (g *GeminiLive) StartStreaming(ctx context.Context, req model.StreamRequest, receiver model.Receiver) (model.StreamWriter, error) {
	ctx, span := tracer.Start(ctx, "gemini.live.connect", trace.WithAttributes(
		attribute.String("gen_ai.request.model", g.model),
		attribute.String("consultation_id", req.ConsultationID),
	))
	defer span.End()

	cfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		SystemInstruction:        genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if req.TranscribeInput {
		cfg.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	slog.Info("connecting gemini live session", "consultation_id", req.ConsultationID, "model", g.model, "transcribe_input", req.TranscribeInput)
	sess, err := g.connect(ctx, g.model, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return nil, fmt.Errorf("connect gemini live: %w", err)
	}

	w := &liveWriter{
		session:  sess,
		mimeType: fmt.Sprintf("audio/pcm;rate=%d", req.InputSampleRate),
	}
	go w.receiveLoop(req.ConsultationID, &turnAssembler{receiver: receiver})
	return w, nil
}

type liveWriter struct {
	mu       sync.Mutex
	closed   bool
	session  liveSession
	mimeType string
}

func (w *liveWriter) WriteAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return w.send(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: w.mimeType},
	})
}

func (w *liveWriter) WriteText(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return w.send(genai.LiveRealtimeInput{Text: text})
}

func (w *liveWriter) send(input genai.LiveRealtimeInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return io.ErrClosedPipe
	}
	return w.session.SendRealtimeInput(input)
}

func (w *liveWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.session.Close()
}

func (w *liveWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *liveWriter) receiveLoop(consultationID string, a *turnAssembler) {
	for {
		msg, err := w.session.Receive()
		if err != nil {
			a.flush()
			if w.isClosed() || isNormalClose(err) {
				slog.Info("gemini live receive loop stopped", "consultation_id", consultationID, "reason", err.Error())
				return
			}
			a.receiver.OnError(err)
			return
		}
		a.handle(msg)
	}
}

func isNormalClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}

// turnAssembler joins streamed transcription fragments into whole messages.
// User speech is flushed once the model starts answering; the model's text
// is flushed when its turn completes or is interrupted. Text parts of the
// model turn are ignored because audio responses carry their words in the
// output transcription.
type turnAssembler struct {
	receiver model.Receiver
	user     strings.Builder
	bot      strings.Builder
}

func (a *turnAssembler) handle(msg *genai.LiveServerMessage) {
	if msg == nil || msg.ServerContent == nil {
		return
	}
	sc := msg.ServerContent
	if sc.InputTranscription != nil {
		a.user.WriteString(sc.InputTranscription.Text)
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			a.flushUser()
			a.receiver.OnAudio(p.InlineData.Data)
		}
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		a.flushUser()
		a.bot.WriteString(sc.OutputTranscription.Text)
	}
	if sc.Interrupted || sc.TurnComplete {
		a.flush()
	}
}

func (a *turnAssembler) flush() {
	a.flushUser()
	a.flushBot()
}

func (a *turnAssembler) flushUser() {
	text := strings.TrimSpace(a.user.String())
	a.user.Reset()
	if text != "" {
		a.receiver.OnMessage(live.SenderUser, text)
	}
}

func (a *turnAssembler) flushBot() {
	text := strings.TrimSpace(a.bot.String())
	a.bot.Reset()
	if text != "" {
		a.receiver.OnMessage(live.SenderBot, text)
	}
}
