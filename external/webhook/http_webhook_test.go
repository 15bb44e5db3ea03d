package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxseedlab/suma/internal/webhook"
)

func TestSendReport_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendReport(context.Background(), webhook.ConsultationReportPayload{ConsultationID: "c-1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendReport_Success(t *testing.T) {
	var got webhook.ConsultationReportPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	payload := webhook.ConsultationReportPayload{
		SchemaVersion:  webhook.ConsultationReportSchemaVersion,
		ConsultationID: "c-1",
		Role:           "MEDICO",
		MessageCount:   1,
		Messages:       []webhook.ConsultationReportMessage{{Index: 0, Sender: "bot", Text: "hola"}},
	}
	sender := NewHTTPSender(server.URL)
	if err := sender.SendReport(context.Background(), payload); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.ConsultationID != "c-1" || got.Role != "MEDICO" || len(got.Messages) != 1 || got.Messages[0].Text != "hola" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSendReport_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendReport(context.Background(), webhook.ConsultationReportPayload{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
