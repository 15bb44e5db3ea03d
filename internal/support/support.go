package support

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/suma/internal/metrics"
	"github.com/foxseedlab/suma/internal/model"
	"github.com/google/uuid"
)

const (
	Greeting       = "Hola, soy el Soporte Técnico de SUMA. ¿En qué puedo ayudarte sobre el uso de la aplicación?"
	ConnectionFail = "Error de conexión con el soporte. Verifica tu API Key."

	systemInstruction = `Eres el Agente de Soporte Técnico de la aplicación "SUMA".
TU OBJETIVO: Ayudar al usuario EXCLUSIVAMENTE con dudas sobre cómo usar la app.

FUNCIONES DE LA APP QUE PUEDES EXPLICAR:
1. Activación: Se entra con un código numérico.
2. Formulario: Se deben llenar datos del paciente y seleccionar un rol.
3. Roles: Médico, Enfermero, Paramédico, Primer Respondiente.
4. Asistencia IA: La app usa inteligencia artificial para dar recomendaciones de triaje médico.

REGLAS:
- NO des consejos médicos. Si te preguntan por síntomas, diles que inicien la asistencia en la pantalla anterior.
- Sé amable, breve y técnico.
- Si te preguntan algo fuera de la app, responde: "Solo puedo brindar soporte técnico sobre la aplicación SUMA."`
)

var (
	ErrEmptyMessage         = errors.New("support message is empty")
	ErrConversationNotFound = errors.New("support conversation not found")
)

type Reply struct {
	ConversationID string
	// Greeting is set only on the reply that opened the conversation.
	Greeting string
	Text     string
	// Failed reports that Text is the fixed connection error reply.
	Failed bool
}

type Service struct {
	chatModel model.ChatModel
	metrics   *metrics.Metrics
	now       func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

type conversation struct {
	// mu serializes sends so replies keep the order of questions.
	mu       sync.Mutex
	chat     model.Chat
	lastUsed time.Time
}

func NewService(chatModel model.ChatModel, m *metrics.Metrics) *Service {
	return &Service{
		chatModel:     chatModel,
		metrics:       m,
		now:           time.Now,
		conversations: make(map[string]*conversation),
	}
}

// Send answers text within conversationID. An empty conversationID opens a
// new conversation. Model failures come back as the fixed connection error
// reply rather than as an error.
func (s *Service) Send(ctx context.Context, conversationID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	s.metrics.SupportRequests.Inc()

	reply := Reply{ConversationID: conversationID}
	var conv *conversation
	if conversationID == "" {
		id, c, err := s.open(ctx)
		if err != nil {
			slog.Error("failed to open support chat", "error", err)
			s.metrics.SupportFailures.Inc()
			return Reply{Greeting: Greeting, Text: ConnectionFail, Failed: true}, nil
		}
		conv = c
		reply.ConversationID = id
		reply.Greeting = Greeting
	} else {
		s.mu.Lock()
		c, ok := s.conversations[conversationID]
		s.mu.Unlock()
		if !ok {
			return Reply{}, ErrConversationNotFound
		}
		conv = c
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.lastUsed = s.now()
	answer, err := conv.chat.Send(ctx, text)
	if err != nil {
		slog.Error("support chat failed", "error", err, "conversation_id", reply.ConversationID)
		s.metrics.SupportFailures.Inc()
		reply.Text = ConnectionFail
		reply.Failed = true
		return reply, nil
	}
	reply.Text = answer
	return reply, nil
}

func (s *Service) open(ctx context.Context) (string, *conversation, error) {
	chat, err := s.chatModel.NewChat(ctx, systemInstruction)
	if err != nil {
		return "", nil, fmt.Errorf("new support chat: %w", err)
	}
	id := uuid.NewString()
	c := &conversation{chat: chat, lastUsed: s.now()}
	s.mu.Lock()
	s.conversations[id] = c
	s.mu.Unlock()
	slog.Info("support conversation opened", "conversation_id", id)
	return id, c, nil
}

// PurgeIdle forgets conversations unused for longer than idle.
func (s *Service) PurgeIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.conversations {
		if !c.mu.TryLock() {
			continue
		}
		expired := c.lastUsed.Before(cutoff)
		c.mu.Unlock()
		if expired {
			delete(s.conversations, id)
			removed++
		}
	}
	return removed
}
