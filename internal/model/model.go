package model

import (
	"context"

	"github.com/foxseedlab/suma/internal/live"
)

type StreamRequest struct {
	ConsultationID    string
	SystemInstruction string
	InputSampleRate   int
	// TranscribeInput asks the model to transcribe the user's speech. It is
	// off when a dedicated transcriber handles the user side.
	TranscribeInput bool
}

// StreamWriter sends user input on an open live stream.
type StreamWriter interface {
	WriteAudio(pcm []byte) error
	WriteText(text string) error
	Close() error
}

// Receiver gets complete conversational turns and raw model audio. Audio is
// 16-bit little-endian mono PCM at the model's output rate.
type Receiver interface {
	OnMessage(sender live.Sender, text string)
	OnAudio(pcm []byte)
	OnError(err error)
}

type LiveModel interface {
	StartStreaming(ctx context.Context, req StreamRequest, receiver Receiver) (StreamWriter, error)
}

type Chat interface {
	Send(ctx context.Context, text string) (string, error)
}

type ChatModel interface {
	NewChat(ctx context.Context, systemInstruction string) (Chat, error)
}
