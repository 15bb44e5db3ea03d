package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/suma/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	audioChannelCount     = 1
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

type CloudSpeechTranscriber struct {
	projectID       string
	credentialsJSON string
	defaultLanguage string
	location        string
	model           string
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) transcriber.Transcriber {
	return &CloudSpeechTranscriber{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		defaultLanguage: cfg.Language,
		location:        strings.TrimSpace(cfg.Location),
		model:           strings.TrimSpace(cfg.Model),
	}
}

func (t *CloudSpeechTranscriber) StartStreaming(ctx context.Context, req transcriber.StreamRequest, receiver transcriber.ResultReceiver) (transcriber.StreamWriter, error) {
	language := req.Language
	if language == "" {
		language = t.defaultLanguage
	}
	slog.Info("starting cloud speech streaming", "consultation_id", req.ConsultationID, "location", t.location, "language", language, "model", t.model, "sample_rate_hz", req.SampleRateHertz)

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{option.WithAuthCredentials(creds)}
	if t.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	w := &speechStream{
		consultationID: req.ConsultationID,
		receiver:       receiver,
		open: func() (speechpb.Speech_StreamingRecognizeClient, error) {
			return t.openStream(ctx, client, language, req.SampleRateHertz)
		},
		closeClient: client.Close,
	}
	if err := w.connect(); err != nil {
		_ = client.Close()
		return nil, err
	}
	slog.Info("cloud speech stream initialized", "consultation_id", req.ConsultationID)
	return w, nil
}

func (t *CloudSpeechTranscriber) openStream(ctx context.Context, client *speech.Client, language string, sampleRate int) (speechpb.Speech_StreamingRecognizeClient, error) {
	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		return nil, err
	}
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", t.projectID, t.location),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         t.model,
					LanguageCodes: []string{language},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(sampleRate),
							AudioChannelCount: audioChannelCount,
						},
					},
					Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: false},
			},
		},
	})
	if err != nil {
		_ = stream.CloseSend()
		return nil, err
	}
	return stream, nil
}

// speechStream hides the five minute stream limit of the API by reopening
// the stream when the server aborts it.
type speechStream struct {
	consultationID string
	receiver       transcriber.ResultReceiver
	open           func() (speechpb.Speech_StreamingRecognizeClient, error)
	closeClient    func() error

	mu     sync.Mutex
	closed bool
	stream speechpb.Speech_StreamingRecognizeClient
}

func (s *speechStream) connect() error {
	stream, err := s.open()
	if err != nil {
		return err
	}
	s.stream = stream
	go s.receive(stream)
	return nil
}

func (s *speechStream) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: pcm},
	}
	err := s.stream.Send(req)
	if err == nil {
		return nil
	}
	if !isReconnectableStreamError(err) {
		return err
	}
	slog.Warn("speech stream send failed with reconnectable error; reopening", "error", err, "consultation_id", s.consultationID)
	_ = s.stream.CloseSend()
	if err := s.connect(); err != nil {
		return fmt.Errorf("reopen speech stream: %w", err)
	}
	return s.stream.Send(req)
}

func (s *speechStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	sendErr := s.stream.CloseSend()
	closeErr := s.closeClient()
	return errors.Join(sendErr, closeErr)
}

func (s *speechStream) receive(stream speechpb.Speech_StreamingRecognizeClient) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled || isReconnectableStreamError(err) {
				slog.Info("speech receive loop stopped", "consultation_id", s.consultationID, "reason", err.Error())
				return
			}
			s.receiver.OnError(err)
			return
		}
		for _, result := range resp.GetResults() {
			alts := result.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			s.receiver.OnResult(alts[0].GetTranscript(), result.GetIsFinal())
		}
	}
}

func isReconnectableStreamError(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
