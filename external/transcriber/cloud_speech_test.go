package transcriber

import (
	"context"
	"errors"
	"io"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeRecognizeStream struct {
	grpc.ClientStream
	sent      []*speechpb.StreamingRecognizeRequest
	sendErrs  []error
	responses []*speechpb.StreamingRecognizeResponse
	recvErr   error
	closed    bool
}

func (f *fakeRecognizeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeRecognizeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	if len(f.responses) > 0 {
		r := f.responses[0]
		f.responses = f.responses[1:]
		return r, nil
	}
	return nil, f.recvErr
}

func (f *fakeRecognizeStream) CloseSend() error {
	f.closed = true
	return nil
}

func (f *fakeRecognizeStream) Context() context.Context { return context.Background() }

type resultRecorder struct {
	results chan string
	errs    chan error
}

func newResultRecorder() *resultRecorder {
	return &resultRecorder{results: make(chan string, 8), errs: make(chan error, 8)}
}

func (r *resultRecorder) OnResult(text string, isFinal bool) {
	if isFinal {
		r.results <- text
	}
}

func (r *resultRecorder) OnError(err error) { r.errs <- err }

func TestIsReconnectableStreamError(t *testing.T) {
	if !isReconnectableStreamError(io.EOF) {
		t.Fatal("expected EOF to be reconnectable")
	}
	if !isReconnectableStreamError(status.Error(codes.Aborted, "Max duration of 5 minutes reached")) {
		t.Fatal("expected duration abort to be reconnectable")
	}
	if isReconnectableStreamError(status.Error(codes.Aborted, "something else")) {
		t.Fatal("expected unrelated abort to be fatal")
	}
	if isReconnectableStreamError(status.Error(codes.PermissionDenied, "no")) {
		t.Fatal("expected permission error to be fatal")
	}
}

func TestSpeechStream_ReopensOnAbort(t *testing.T) {
	first := &fakeRecognizeStream{
		sendErrs: []error{status.Error(codes.Aborted, "Max duration of 5 minutes reached")},
		recvErr:  io.EOF,
	}
	second := &fakeRecognizeStream{recvErr: io.EOF}
	streams := []*fakeRecognizeStream{first, second}
	opened := 0

	s := &speechStream{
		consultationID: "c-1",
		receiver:       newResultRecorder(),
		open: func() (speechpb.Speech_StreamingRecognizeClient, error) {
			st := streams[opened]
			opened++
			return st, nil
		},
		closeClient: func() error { return nil },
	}
	if err := s.connect(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Write([]byte{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opened != 2 {
		t.Fatalf("expected stream to be reopened, opened=%d", opened)
	}
	if !first.closed {
		t.Fatal("expected aborted stream to be closed")
	}
	if len(second.sent) != 1 {
		t.Fatalf("expected audio to be resent on new stream, got %d", len(second.sent))
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Write([]byte{1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected io.ErrClosedPipe, got %v", err)
	}
}

func TestSpeechStream_DeliversResultsAndErrors(t *testing.T) {
	stream := &fakeRecognizeStream{
		responses: []*speechpb.StreamingRecognizeResponse{{
			Results: []*speechpb.StreamingRecognitionResult{
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "tiene fiebre"}}, IsFinal: true},
				{},
			},
		}},
		recvErr: status.Error(codes.PermissionDenied, "denied"),
	}
	rec := newResultRecorder()
	s := &speechStream{
		receiver:    rec,
		open:        func() (speechpb.Speech_StreamingRecognizeClient, error) { return stream, nil },
		closeClient: func() error { return nil },
	}
	if err := s.connect(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := <-rec.results; got != "tiene fiebre" {
		t.Fatalf("unexpected result: %q", got)
	}
	if err := <-rec.errs; status.Code(err) != codes.PermissionDenied {
		t.Fatalf("unexpected error: %v", err)
	}
}
