package support

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxseedlab/suma/internal/metrics"
	"github.com/foxseedlab/suma/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockChatModel struct {
	instructions []string
	chats        []*mockChat
	newChatErr   error
	sendErr      error
}

func (m *mockChatModel) NewChat(_ context.Context, systemInstruction string) (model.Chat, error) {
	if m.newChatErr != nil {
		return nil, m.newChatErr
	}
	m.instructions = append(m.instructions, systemInstruction)
	c := &mockChat{err: m.sendErr}
	m.chats = append(m.chats, c)
	return c, nil
}

type mockChat struct {
	sent []string
	err  error
}

func (c *mockChat) Send(_ context.Context, text string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, text)
	return "respuesta: " + text, nil
}

func TestSend_OpensConversationAndReuses(t *testing.T) {
	cm := &mockChatModel{}
	s := NewService(cm, metrics.New())

	first, err := s.Send(context.Background(), "", "¿Cómo cambio el rol?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ConversationID == "" || first.Greeting != Greeting {
		t.Fatalf("expected new conversation with greeting, got %+v", first)
	}
	if first.Text != "respuesta: ¿Cómo cambio el rol?" || first.Failed {
		t.Fatalf("unexpected reply: %+v", first)
	}

	second, err := s.Send(context.Background(), first.ConversationID, "Gracias")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Greeting != "" || second.ConversationID != first.ConversationID {
		t.Fatalf("unexpected follow-up reply: %+v", second)
	}
	if len(cm.chats) != 1 || len(cm.chats[0].sent) != 2 {
		t.Fatalf("expected one chat with two messages, got %d chats", len(cm.chats))
	}
	if cm.instructions[0] != systemInstruction {
		t.Fatal("unexpected system instruction")
	}
}

func TestSend_RejectsBlankAndUnknown(t *testing.T) {
	s := NewService(&mockChatModel{}, metrics.New())

	if _, err := s.Send(context.Background(), "", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := s.Send(context.Background(), "nope", "hola"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSend_ModelFailureReturnsFixedReply(t *testing.T) {
	m := metrics.New()
	s := NewService(&mockChatModel{sendErr: errors.New("401")}, m)

	reply, err := s.Send(context.Background(), "", "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != ConnectionFail || !reply.Failed {
		t.Fatalf("expected connection failure reply, got %+v", reply)
	}
	if got := testutil.ToFloat64(m.SupportFailures); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}

	s = NewService(&mockChatModel{newChatErr: errors.New("no key")}, m)
	reply, err = s.Send(context.Background(), "", "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != ConnectionFail || reply.ConversationID != "" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestPurgeIdle(t *testing.T) {
	s := NewService(&mockChatModel{}, metrics.New())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	reply, err := s.Send(context.Background(), "", "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := s.PurgeIdle(time.Hour); n != 0 {
		t.Fatalf("expected nothing purged, got %d", n)
	}

	now = now.Add(2 * time.Hour)
	if n := s.PurgeIdle(time.Hour); n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
	if _, err := s.Send(context.Background(), reply.ConversationID, "otra"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}
