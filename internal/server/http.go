package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/suma/internal/config"
	"github.com/foxseedlab/suma/internal/live"
	"github.com/foxseedlab/suma/internal/metrics"
	"github.com/foxseedlab/suma/internal/session"
	"github.com/foxseedlab/suma/internal/support"
	"github.com/foxseedlab/suma/internal/triage"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Consultations is the part of the session manager the server drives.
type Consultations interface {
	Start(ctx context.Context, in session.StartInput) (string, error)
	RegisterMessageHandler(id string, fn live.MessageHandler) error
	SendAudio(id string, in session.AudioInput) error
	SendText(id, text string) error
	Stop(ctx context.Context, id, reason string) error
	Get(ctx context.Context, id string) (*session.ConsultationDetail, error)
	SetProtected(ctx context.Context, id string, protected bool) error
}

type SupportChat interface {
	Send(ctx context.Context, conversationID, text string) (support.Reply, error)
}

type Server struct {
	cfg           *config.Config
	catalog       *triage.Catalog
	consultations Consultations
	support       SupportChat
	metrics       *metrics.Metrics
	upgrader      websocket.Upgrader
	writeTimeout  time.Duration
	server        *http.Server
}

func New(cfg *config.Config, catalog *triage.Catalog, consultations Consultations, sc SupportChat, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:           cfg,
		catalog:       catalog,
		consultations: consultations,
		support:       sc,
		metrics:       m,
		writeTimeout:  wsWriteTimeout,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.originAllowed,
	}
	s.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /v1/roles", s.handleRoles)
	mux.HandleFunc("POST /v1/support/messages", s.handleSupportMessage)
	mux.HandleFunc("GET /v1/consultations/{id}", s.handleGetConsultation)
	mux.HandleFunc("PUT /v1/consultations/{id}/protection", s.handleSetProtection)
	mux.HandleFunc("GET /v1/live", s.handleLive)
	return mux
}

func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(s.cfg.WSAllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.WSAllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"roles": s.catalog.Profiles()})
}

type supportMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type supportMessageResponse struct {
	ConversationID string `json:"conversation_id"`
	Greeting       string `json:"greeting,omitempty"`
	Text           string `json:"text"`
	Failed         bool   `json:"failed"`
}

func (s *Server) handleSupportMessage(w http.ResponseWriter, r *http.Request) {
	var req supportMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be JSON")
		return
	}
	reply, err := s.support.Send(r.Context(), req.ConversationID, req.Text)
	switch {
	case errors.Is(err, support.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "empty_message", err.Error())
		return
	case errors.Is(err, support.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation_not_found", err.Error())
		return
	case err != nil:
		slog.Error("support message failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "support request failed")
		return
	}
	writeJSON(w, http.StatusOK, supportMessageResponse{
		ConversationID: reply.ConversationID,
		Greeting:       reply.Greeting,
		Text:           reply.Text,
		Failed:         reply.Failed,
	})
}

type consultationMessageResponse struct {
	Index    int       `json:"index"`
	Sender   string    `json:"sender"`
	Text     string    `json:"text"`
	SpokenAt time.Time `json:"spoken_at"`
}

type consultationResponse struct {
	ID         string                        `json:"id"`
	Role       triage.Role                   `json:"role"`
	Patient    triage.PatientData            `json:"patient"`
	StartedAt  time.Time                     `json:"started_at"`
	EndedAt    *time.Time                    `json:"ended_at,omitempty"`
	Status     string                        `json:"status"`
	StopReason string                        `json:"stop_reason,omitempty"`
	Summary    string                        `json:"summary,omitempty"`
	Protected  bool                          `json:"protected"`
	Running    bool                          `json:"running"`
	Messages   []consultationMessageResponse `json:"messages"`
}

// pathConsultationID writes a 404 for ids that cannot name a stored
// consultation.
func pathConsultationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	parsed, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", session.ErrNotFound.Error())
		return "", false
	}
	return parsed.String(), true
}

func (s *Server) handleGetConsultation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathConsultationID(w, r)
	if !ok {
		return
	}
	detail, err := s.consultations.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to get consultation", "error", err, "consultation_id", id)
		writeError(w, http.StatusInternalServerError, "internal", "failed to get consultation")
		return
	}
	c := detail.Consultation
	resp := consultationResponse{
		ID:         c.ID,
		Role:       c.Role,
		Patient:    c.Patient,
		StartedAt:  c.StartedAt,
		EndedAt:    c.EndedAt,
		Status:     string(c.Status),
		StopReason: c.StopReason,
		Summary:    c.Summary,
		Protected:  c.Protected,
		Running:    detail.Running,
		Messages:   make([]consultationMessageResponse, 0, len(detail.Messages)),
	}
	for _, msg := range detail.Messages {
		resp.Messages = append(resp.Messages, consultationMessageResponse{
			Index:    msg.MessageIndex,
			Sender:   msg.Sender,
			Text:     msg.Content,
			SpokenAt: msg.SpokenAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type protectionRequest struct {
	Protected *bool `json:"protected"`
}

func (s *Server) handleSetProtection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathConsultationID(w, r)
	if !ok {
		return
	}
	var req protectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Protected == nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "body must be {\"protected\": bool}")
		return
	}
	err := s.consultations.SetProtected(r.Context(), id, *req.Protected)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to set consultation protection", "error", err, "consultation_id", id)
		writeError(w, http.StatusInternalServerError, "internal", "failed to update consultation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write json response", "error", err)
	}
}
