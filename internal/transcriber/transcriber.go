package transcriber

import "context"

type StreamWriter interface {
	Write(pcm []byte) error
	Close() error
}

// ResultReceiver gets recognition results for the user's side of a
// consultation.
type ResultReceiver interface {
	OnResult(text string, isFinal bool)
	OnError(err error)
}

type StreamRequest struct {
	ConsultationID  string
	Language        string
	SampleRateHertz int
}

type Transcriber interface {
	StartStreaming(ctx context.Context, req StreamRequest, receiver ResultReceiver) (StreamWriter, error)
}
