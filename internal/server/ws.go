package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/suma/internal/audio"
	"github.com/foxseedlab/suma/internal/live"
	"github.com/foxseedlab/suma/internal/session"
	"github.com/foxseedlab/suma/internal/triage"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsMaxMessageBytes = 1 << 20
	wsPongWait        = 60 * time.Second
	wsPingInterval    = 25 * time.Second
	wsWriteTimeout    = 5 * time.Second
	wsOutboundBuffer  = 128
)

const (
	frameStart   = "start"
	frameAudio   = "audio"
	frameText    = "text"
	frameStop    = "stop"
	frameReady   = "ready"
	frameState   = "state"
	frameMessage = "message"
	frameError   = "error"
)

type clientFrame struct {
	Type     string             `json:"type"`
	Role     string             `json:"role,omitempty"`
	Patient  triage.PatientData `json:"patient"`
	Encoding string             `json:"encoding,omitempty"`
	Data     string             `json:"data,omitempty"`
	Text     string             `json:"text,omitempty"`
}

type readyFrame struct {
	Type             string `json:"type"`
	ConsultationID   string `json:"consultation_id"`
	InputSampleRate  int    `json:"input_sample_rate"`
	OutputSampleRate int    `json:"output_sample_rate"`
}

type stateFrame struct {
	Type   string `json:"type"`
	State  string `json:"state"`
	Active bool   `json:"active"`
}

type messageFrame struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type audioFrame struct {
	Type       string  `json:"type"`
	Data       string  `json:"data"`
	SampleRate int     `json:"sample_rate"`
	Peak       float64 `json:"peak"`
	DurationMS int64   `json:"duration_ms"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// liveConn bridges one websocket to at most one running consultation at a
// time. Reads happen on the handler goroutine; writes go through out.
type liveConn struct {
	server *Server
	conn   *websocket.Conn
	ctx    context.Context
	out    chan []byte

	mu             sync.Mutex
	consultationID string
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx, cancel := context.WithCancel(context.Background())
	lc := &liveConn{
		server: s,
		conn:   conn,
		ctx:    ctx,
		out:    make(chan []byte, wsOutboundBuffer),
	}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// Pending and future sends give up once nothing drains out.
		defer cancel()
		if err := lc.writeLoop(); err != nil {
			slog.Debug("websocket writer stopped", "error", err)
			_ = conn.Close()
		}
	}()

	lc.readLoop()
	lc.stopConsultation(session.StopReasonClientGone)
	cancel()
	<-writerDone
}

func (lc *liveConn) readLoop() {
	for {
		messageType, data, err := lc.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read ended", "error", err)
			}
			return
		}
		_ = lc.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if messageType != websocket.TextMessage {
			lc.sendError("bad_request", "frames must be JSON text")
			continue
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			lc.sendError("bad_request", "invalid JSON frame")
			continue
		}
		lc.dispatch(frame)
	}
}

func (lc *liveConn) dispatch(frame clientFrame) {
	switch frame.Type {
	case frameStart:
		lc.start(frame)
	case frameAudio:
		id := lc.current()
		if id == "" {
			lc.sendError("not_started", "send a start frame first")
			return
		}
		err := lc.server.consultations.SendAudio(id, session.AudioInput{
			Encoding: session.AudioEncoding(frame.Encoding),
			Base64:   frame.Data,
		})
		if err != nil {
			lc.sendFailure(err)
		}
	case frameText:
		id := lc.current()
		if id == "" {
			lc.sendError("not_started", "send a start frame first")
			return
		}
		if err := lc.server.consultations.SendText(id, frame.Text); err != nil {
			lc.sendFailure(err)
		}
	case frameStop:
		lc.stopConsultation(session.StopReasonClientRequest)
	default:
		lc.sendError("bad_request", "unknown frame type")
	}
}

func (lc *liveConn) start(frame clientFrame) {
	if lc.current() != "" {
		lc.sendError("already_started", "a consultation is already running on this connection")
		return
	}
	id, err := lc.server.consultations.Start(lc.ctx, session.StartInput{
		Role:      frame.Role,
		Patient:   frame.Patient,
		OnMessage: lc.onMessage,
		OnAudio:   lc.onAudio,
		OnState:   lc.onState,
	})
	if err != nil {
		lc.sendFailure(err)
		return
	}
	lc.mu.Lock()
	lc.consultationID = id
	lc.mu.Unlock()
	lc.send(readyFrame{
		Type:             frameReady,
		ConsultationID:   id,
		InputSampleRate:  lc.server.cfg.LiveInputSampleRate,
		OutputSampleRate: lc.server.cfg.LiveOutputSampleRate,
	})
}

func (lc *liveConn) stopConsultation(reason string) {
	lc.mu.Lock()
	id := lc.consultationID
	lc.consultationID = ""
	lc.mu.Unlock()
	if id == "" {
		return
	}
	err := lc.server.consultations.Stop(context.Background(), id, reason)
	if err != nil && !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrAlreadyStopped) {
		slog.Error("failed to stop consultation", "error", err, "consultation_id", id)
	}
}

func (lc *liveConn) current() string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.consultationID
}

func (lc *liveConn) onMessage(msg live.Message) {
	lc.send(messageFrame{
		Type:   frameMessage,
		ID:     uuid.NewString(),
		Sender: string(msg.Sender),
		Text:   msg.Text,
	})
}

func (lc *liveConn) onAudio(out session.AudioOutput) {
	lc.send(audioFrame{
		Type:       frameAudio,
		Data:       out.Base64,
		SampleRate: out.SampleRate,
		Peak:       out.Peak,
		DurationMS: out.Duration.Milliseconds(),
	})
}

func (lc *liveConn) onState(state live.State) {
	if state == live.StateDisconnected {
		// The model side may end the consultation on its own.
		lc.mu.Lock()
		lc.consultationID = ""
		lc.mu.Unlock()
	}
	lc.send(stateFrame{
		Type:   frameState,
		State:  state.String(),
		Active: state == live.StateConnected,
	})
}

func (lc *liveConn) sendFailure(err error) {
	switch {
	case errors.Is(err, triage.ErrUnknownRole):
		lc.sendError("invalid_role", err.Error())
	case errors.Is(err, triage.ErrIncompletePatient):
		lc.sendError("incomplete_patient", err.Error())
	case errors.Is(err, audio.ErrCodecUnavailable):
		lc.sendError("codec_unavailable", err.Error())
	case errors.Is(err, audio.ErrDecode):
		lc.sendError("invalid_audio", err.Error())
	case errors.Is(err, session.ErrEmptyText):
		lc.sendError("empty_text", err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrNotActive):
		lc.sendError("not_started", err.Error())
	default:
		slog.Error("live request failed", "error", err, "consultation_id", lc.current())
		lc.sendError("internal", "the consultation could not process the request")
	}
}

func (lc *liveConn) sendError(code, message string) {
	lc.send(errorFrame{Type: frameError, Code: code, Message: message})
}

func (lc *liveConn) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode websocket frame", "error", err)
		return
	}
	select {
	case lc.out <- b:
	case <-lc.ctx.Done():
	}
}

func (lc *liveConn) writeLoop() error {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-lc.ctx.Done():
			lc.drain()
			_ = lc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(lc.server.writeTimeout))
			return nil
		case <-ping.C:
			if err := lc.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(lc.server.writeTimeout)); err != nil {
				return err
			}
		case b := <-lc.out:
			if err := lc.write(b); err != nil {
				return err
			}
		}
	}
}

// drain flushes frames queued before shutdown, such as the final state.
func (lc *liveConn) drain() {
	for {
		select {
		case b := <-lc.out:
			if err := lc.write(b); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (lc *liveConn) write(b []byte) error {
	if err := lc.conn.SetWriteDeadline(time.Now().Add(lc.server.writeTimeout)); err != nil {
		return err
	}
	return lc.conn.WriteMessage(websocket.TextMessage, b)
}
