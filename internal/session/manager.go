package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/suma/internal/audio"
	"github.com/foxseedlab/suma/internal/config"
	"github.com/foxseedlab/suma/internal/discord"
	"github.com/foxseedlab/suma/internal/live"
	"github.com/foxseedlab/suma/internal/metrics"
	"github.com/foxseedlab/suma/internal/model"
	"github.com/foxseedlab/suma/internal/repository"
	"github.com/foxseedlab/suma/internal/transcriber"
	"github.com/foxseedlab/suma/internal/triage"
	"github.com/foxseedlab/suma/internal/webhook"
	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("consultation not found")
	ErrAlreadyStopped = errors.New("consultation already stopped")
	ErrNotActive      = errors.New("consultation is not capturing audio")
	ErrEmptyText      = errors.New("text is empty")
)

type AudioEncoding string

const (
	EncodingPCM16 AudioEncoding = "pcm_s16le"
	EncodingF32   AudioEncoding = "f32le"
	EncodingOpus  AudioEncoding = "opus"
)

type AudioInput struct {
	Encoding AudioEncoding
	Base64   string
}

// AudioOutput is one chunk of model speech ready for playback.
type AudioOutput struct {
	Base64     string
	SampleRate int
	Peak       float64
	Duration   time.Duration
}

type StartInput struct {
	Role      string
	Patient   triage.PatientData
	OnMessage live.MessageHandler
	OnAudio   func(AudioOutput)
	OnState   func(live.State)
}

type ConsultationDetail struct {
	Consultation *repository.Consultation
	Messages     []repository.ConsultationMessage
	Running      bool
}

type Dependencies struct {
	Config      *config.Config
	Repository  repository.Repository
	Catalog     *triage.Catalog
	LiveModel   model.LiveModel
	Transcriber transcriber.Transcriber
	Webhook     webhook.Sender
	Discord     discord.Client
	NewDecoder  audio.PacketDecoderFactory
	Metrics     *metrics.Metrics
}

type Manager struct {
	cfg         *config.Config
	repo        repository.Repository
	catalog     *triage.Catalog
	liveModel   model.LiveModel
	transcriber transcriber.Transcriber
	webhook     webhook.Sender
	discord     discord.Client
	newDecoder  audio.PacketDecoderFactory
	metrics     *metrics.Metrics
	location    *time.Location
	now         func() time.Time

	mu            sync.Mutex
	consultations map[string]*runningConsultation
	finalizing    sync.WaitGroup
}

type runningConsultation struct {
	consultation *repository.Consultation
	roleLabel    string
	live         *live.Session
	writer       model.StreamWriter
	sttWriter    transcriber.StreamWriter
	cancel       context.CancelFunc
	timer        *time.Timer
	onAudio      func(AudioOutput)
	onState      func(live.State)

	mu            sync.Mutex
	registered    bool
	startErr      error
	decoder       audio.PacketDecoder
	nextIndex     int
	receivedAudio int64
}

func NewManager(deps Dependencies) *Manager {
	loc, err := time.LoadLocation(deps.Config.ReportTimezone)
	if err != nil {
		slog.Warn("invalid report timezone; falling back to UTC", "timezone", deps.Config.ReportTimezone, "error", err)
		loc = time.UTC
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = triage.DefaultCatalog()
	}
	return &Manager{
		cfg:           deps.Config,
		repo:          deps.Repository,
		catalog:       catalog,
		liveModel:     deps.LiveModel,
		transcriber:   deps.Transcriber,
		webhook:       deps.Webhook,
		discord:       deps.Discord,
		newDecoder:    deps.NewDecoder,
		metrics:       deps.Metrics,
		location:      loc,
		now:           time.Now,
		consultations: make(map[string]*runningConsultation),
	}
}

func (m *Manager) Start(ctx context.Context, in StartInput) (string, error) {
	profile, err := m.catalog.Lookup(in.Role)
	if err != nil {
		return "", err
	}
	if err := in.Patient.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	slog.Info("start consultation requested", "consultation_id", id, "role", profile.ID)
	created, err := m.repo.CreateConsultation(ctx, repository.CreateConsultationInput{
		ID:        id,
		Role:      profile.ID,
		Patient:   in.Patient,
		StartedAt: m.now(),
	})
	if err != nil {
		slog.Error("failed to create consultation in repository", "error", err, "consultation_id", id)
		return "", fmt.Errorf("create consultation: %w", err)
	}

	ls := live.NewSession()
	if in.OnMessage != nil {
		ls.RegisterMessageHandler(in.OnMessage)
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	rc := &runningConsultation{
		consultation: created,
		roleLabel:    profile.Label,
		live:         ls,
		cancel:       cancel,
		onAudio:      in.OnAudio,
		onState:      in.OnState,
	}

	ls.Connect()
	writer, err := m.liveModel.StartStreaming(streamCtx, model.StreamRequest{
		ConsultationID:    id,
		SystemInstruction: triage.BuildSystemInstruction(profile, in.Patient),
		InputSampleRate:   m.cfg.LiveInputSampleRate,
		TranscribeInput:   m.transcriber == nil,
	}, &modelReceiver{manager: m, rc: rc})
	if err != nil {
		m.abortStart(rc, err)
		return "", fmt.Errorf("start live model stream: %w", err)
	}
	rc.writer = writer
	slog.Info("live model streaming started", "consultation_id", id)

	if m.transcriber != nil {
		sttWriter, err := m.transcriber.StartStreaming(streamCtx, transcriber.StreamRequest{
			ConsultationID:  id,
			Language:        m.cfg.TranscribeLanguage,
			SampleRateHertz: m.cfg.LiveInputSampleRate,
		}, &transcriptReceiver{manager: m, rc: rc})
		if err != nil {
			_ = writer.Close()
			m.abortStart(rc, err)
			return "", fmt.Errorf("start transcriber stream: %w", err)
		}
		rc.sttWriter = sttWriter
		slog.Info("transcriber streaming started", "consultation_id", id)
	}

	if limit := m.cfg.MaxConsultationDuration(); limit > 0 {
		rc.timer = time.AfterFunc(limit, func() {
			slog.Info("max consultation duration reached", "consultation_id", id, "limit", limit.String())
			if err := m.Stop(context.Background(), id, StopReasonMaxDuration); err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadyStopped) {
				slog.Error("failed to stop consultation on max duration", "error", err, "consultation_id", id)
			}
		})
	}

	// A stream error raised before registration is held on rc, so the
	// consultation either becomes visible healthy or not at all.
	rc.mu.Lock()
	if rc.startErr != nil {
		startErr := rc.startErr
		rc.mu.Unlock()
		if rc.timer != nil {
			rc.timer.Stop()
		}
		_ = writer.Close()
		if rc.sttWriter != nil {
			_ = rc.sttWriter.Close()
		}
		m.abortStart(rc, startErr)
		return "", fmt.Errorf("live model stream failed during start: %w", startErr)
	}
	rc.registered = true
	if rc.onState != nil {
		rc.onState(live.StateConnected)
	}
	m.metrics.ActiveConsultations.Inc()
	m.metrics.ConsultationsStarted.WithLabelValues(string(profile.ID)).Inc()
	m.mu.Lock()
	m.consultations[id] = rc
	m.mu.Unlock()
	rc.mu.Unlock()

	m.recordMessage(rc, live.SenderBot, welcomeMessage(in.Patient.Name))
	slog.Info("consultation activated", "consultation_id", id)
	return id, nil
}

func (m *Manager) abortStart(rc *runningConsultation, cause error) {
	id := rc.consultation.ID
	slog.Error("failed to open consultation streams", "error", cause, "consultation_id", id)
	rc.live.Disconnect()
	rc.cancel()
	if err := m.repo.CompleteConsultation(context.Background(), repository.CompleteConsultationInput{
		ConsultationID: id,
		EndedAt:        m.now(),
		StopReason:     stopReasonStartFailed,
	}); err != nil {
		slog.Error("failed to complete aborted consultation", "error", err, "consultation_id", id)
	}
}

// RegisterMessageHandler replaces the consultation's message receiver.
func (m *Manager) RegisterMessageHandler(id string, fn live.MessageHandler) error {
	rc, ok := m.lookup(id)
	if !ok {
		return ErrNotFound
	}
	rc.live.RegisterMessageHandler(fn)
	return nil
}

func (m *Manager) SendAudio(id string, in AudioInput) error {
	rc, ok := m.lookup(id)
	if !ok {
		return ErrNotFound
	}
	if !rc.live.Active() {
		return ErrNotActive
	}
	pcm, err := m.decodeInput(rc, in)
	if err != nil {
		m.metrics.AudioDecodeErrs.Inc()
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	m.metrics.AudioFramesIn.WithLabelValues(string(in.Encoding)).Inc()
	if n := atomic.AddInt64(&rc.receivedAudio, 1); n == 1 || n%500 == 0 {
		slog.Debug("received audio frame", "consultation_id", id, "encoding", in.Encoding, "pcm_bytes", len(pcm), "total_frames", n)
	}

	if err := rc.writer.WriteAudio(pcm); err != nil {
		return fmt.Errorf("write audio to live model: %w", err)
	}
	if rc.sttWriter != nil {
		if err := rc.sttWriter.Write(pcm); err != nil {
			slog.Warn("failed to write pcm to transcriber stream", "error", err, "consultation_id", id)
		}
	}
	return nil
}

func (m *Manager) decodeInput(rc *runningConsultation, in AudioInput) ([]byte, error) {
	raw, err := audio.DecodeBase64ToBytes(in.Base64)
	if err != nil {
		return nil, err
	}
	switch in.Encoding {
	case EncodingPCM16, "":
		return raw[:len(raw)&^1], nil
	case EncodingF32:
		samples, err := audio.BytesToFloatSamples(raw)
		if err != nil {
			return nil, err
		}
		return audio.PCM16ToBytes(audio.FloatSamplesToPCM16(samples)), nil
	case EncodingOpus:
		dec, err := m.packetDecoder(rc)
		if err != nil {
			return nil, err
		}
		samples, err := dec.DecodePacket(raw)
		if err != nil {
			return nil, err
		}
		return audio.PCM16ToBytes(audio.FloatSamplesToPCM16(samples)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", audio.ErrDecode, in.Encoding)
	}
}

func (m *Manager) packetDecoder(rc *runningConsultation) (audio.PacketDecoder, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.decoder != nil {
		return rc.decoder, nil
	}
	if m.newDecoder == nil {
		return nil, audio.ErrCodecUnavailable
	}
	dec, err := m.newDecoder()
	if err != nil {
		return nil, err
	}
	rc.decoder = dec
	return dec, nil
}

// SendText records a typed user message, echoes it to the handler and
// forwards it to the model.
func (m *Manager) SendText(id, text string) error {
	rc, ok := m.lookup(id)
	if !ok {
		return ErrNotFound
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	m.recordMessage(rc, live.SenderUser, text)
	if err := rc.writer.WriteText(text); err != nil {
		return fmt.Errorf("write text to live model: %w", err)
	}
	return nil
}

func (m *Manager) Stop(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	rc, ok := m.consultations[id]
	if ok {
		delete(m.consultations, id)
	}
	m.mu.Unlock()
	if !ok {
		return m.missing(ctx, id)
	}

	slog.Info("stopping consultation", "consultation_id", id, "reason", reason)
	rc.live.Disconnect()
	if rc.timer != nil {
		rc.timer.Stop()
	}
	rc.cancel()
	if err := rc.writer.Close(); err != nil {
		slog.Warn("failed to close live model stream", "error", err, "consultation_id", id)
	}
	if rc.sttWriter != nil {
		if err := rc.sttWriter.Close(); err != nil {
			slog.Warn("failed to close transcriber stream", "error", err, "consultation_id", id)
		}
	}
	rc.mu.Lock()
	if rc.decoder != nil {
		rc.decoder.Close()
		rc.decoder = nil
	}
	rc.mu.Unlock()
	if rc.onState != nil {
		rc.onState(live.StateDisconnected)
	}

	endedAt := m.now()
	m.metrics.ActiveConsultations.Dec()
	m.metrics.ConsultationsStopped.WithLabelValues(reason).Inc()
	m.metrics.ConsultationDuration.Observe(endedAt.Sub(rc.consultation.StartedAt).Seconds())

	m.finalizing.Add(1)
	go func() {
		defer m.finalizing.Done()
		m.finalize(rc, endedAt, reason)
	}()
	return nil
}

func (m *Manager) missing(ctx context.Context, id string) error {
	c, err := m.repo.GetConsultation(ctx, id)
	if err != nil {
		return fmt.Errorf("get consultation: %w", err)
	}
	if c == nil {
		return ErrNotFound
	}
	return ErrAlreadyStopped
}

func (m *Manager) finalize(rc *runningConsultation, endedAt time.Time, reason string) {
	ctx := context.Background()
	c := rc.consultation
	messages, err := m.repo.ListMessagesByConsultationID(ctx, c.ID)
	if err != nil {
		slog.Error("failed to list consultation messages", "error", err, "consultation_id", c.ID)
		return
	}

	if err := m.repo.CompleteConsultation(ctx, repository.CompleteConsultationInput{
		ConsultationID: c.ID,
		EndedAt:        endedAt,
		StopReason:     reason,
		Summary:        summarize(messages),
	}); err != nil {
		slog.Error("failed to complete consultation", "error", err, "consultation_id", c.ID)
	}

	in := reportInput{
		Consultation: c,
		RoleLabel:    rc.roleLabel,
		EndedAt:      endedAt,
		StopReason:   reason,
		Timezone:     m.cfg.ReportTimezone,
		Location:     m.location,
		Messages:     messages,
	}
	body := buildReportText(in)

	if err := m.webhook.SendReport(ctx, buildReportPayload(in, body)); err != nil {
		m.metrics.ReportsPublished.WithLabelValues("webhook", "error").Inc()
		slog.Error("failed to send report webhook", "error", err, "consultation_id", c.ID)
	} else if m.cfg.ReportWebhookURL != "" {
		m.metrics.ReportsPublished.WithLabelValues("webhook", "ok").Inc()
	}

	if m.discord != nil && m.discord.Enabled() && m.cfg.DiscordReportChannelID != "" {
		err := m.discord.SendChannelMessageWithFile(discord.FileMessage{
			ChannelID: m.cfg.DiscordReportChannelID,
			Content:   messageReportTitle + "\n" + fmt.Sprintf(messageReportLine, c.ID, c.Patient.Name, roleLabel(rc.roleLabel, c.Role)),
			Filename:  fmt.Sprintf("consulta-%s.txt", c.ID),
			FileBody:  body,
		})
		if err != nil {
			m.metrics.ReportsPublished.WithLabelValues("discord", "error").Inc()
			slog.Error("failed to post report to discord", "error", err, "consultation_id", c.ID)
		} else {
			m.metrics.ReportsPublished.WithLabelValues("discord", "ok").Inc()
		}
	}
	slog.Info("consultation finalized", "consultation_id", c.ID, "messages", len(messages), "reason", reason)
}

// Shutdown stops every running consultation and waits for their reports.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.consultations))
	for id := range m.consultations {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		if err := m.Stop(ctx, id, StopReasonServerClosed); err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("failed to stop consultation on shutdown", "error", err, "consultation_id", id)
		}
	}

	done := make(chan struct{})
	go func() {
		m.finalizing.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown timed out waiting for consultation reports", "error", ctx.Err())
	}
}

// RecoverOrphans closes consultations left running by a previous process.
func (m *Manager) RecoverOrphans(ctx context.Context) error {
	n, err := m.repo.CompleteOrphanedConsultations(ctx, m.now())
	if err != nil {
		return fmt.Errorf("complete orphaned consultations: %w", err)
	}
	if n > 0 {
		slog.Warn("orphan running consultations marked as completed", "count", n)
	}
	return nil
}

// PurgeExpired deletes completed, unprotected consultations that ended
// before the retention window.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.cfg.ConsultationRetention())
	n, err := m.repo.DeleteExpiredConsultations(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired consultations: %w", err)
	}
	if n > 0 {
		slog.Info("expired consultations purged", "count", n, "ended_before", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

func (m *Manager) SetProtected(ctx context.Context, id string, protected bool) error {
	found, err := m.repo.SetConsultationProtected(ctx, id, protected)
	if err != nil {
		return fmt.Errorf("set consultation protection: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (m *Manager) Get(ctx context.Context, id string) (*ConsultationDetail, error) {
	c, err := m.repo.GetConsultation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get consultation: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	messages, err := m.repo.ListMessagesByConsultationID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list consultation messages: %w", err)
	}
	_, running := m.lookup(id)
	return &ConsultationDetail{Consultation: c, Messages: messages, Running: running}, nil
}

func (m *Manager) lookup(id string) (*runningConsultation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.consultations[id]
	return rc, ok
}

// recordMessage persists a transcript line and hands it to the registered
// handler. Nothing is recorded once the live session is disconnected.
func (m *Manager) recordMessage(rc *runningConsultation, sender live.Sender, text string) {
	if strings.TrimSpace(text) == "" || !rc.live.Connected() {
		return
	}
	id := rc.consultation.ID
	rc.mu.Lock()
	idx := rc.nextIndex
	rc.nextIndex++
	rc.mu.Unlock()

	if err := m.repo.InsertMessage(context.Background(), repository.InsertMessageInput{
		ConsultationID: id,
		Sender:         string(sender),
		Content:        text,
		MessageIndex:   idx,
		SpokenAt:       m.now(),
	}); err != nil {
		slog.Error("failed to insert consultation message", "error", err, "consultation_id", id)
	}
	m.metrics.MessagesSent.WithLabelValues(string(sender)).Inc()

	if !rc.live.Deliver(live.Message{Text: text, Sender: sender}) {
		m.metrics.MessagesDropped.Inc()
		slog.Warn("message dropped; no handler registered", "consultation_id", id, "sender", sender)
	}
}

func (m *Manager) playAudio(rc *runningConsultation, pcm []byte) {
	if len(pcm) == 0 || rc.onAudio == nil || !rc.live.Active() {
		return
	}
	buf := audio.DecodePCMToAudioBuffer(pcm, m.cfg.LiveOutputSampleRate)
	rc.onAudio(AudioOutput{
		Base64:     audio.EncodeBytesToBase64(pcm),
		SampleRate: buf.SampleRate,
		Peak:       buf.Peak(),
		Duration:   buf.Duration(),
	})
	m.metrics.AudioFramesOut.Inc()
}

type modelReceiver struct {
	manager *Manager
	rc      *runningConsultation
}

func (r *modelReceiver) OnMessage(sender live.Sender, text string) {
	r.manager.recordMessage(r.rc, sender, text)
}

func (r *modelReceiver) OnAudio(pcm []byte) {
	r.manager.playAudio(r.rc, pcm)
}

func (r *modelReceiver) OnError(err error) {
	id := r.rc.consultation.ID
	if errors.Is(err, context.Canceled) {
		slog.Info("live model stream canceled", "error", err, "consultation_id", id)
		return
	}
	slog.Error("live model stream error", "error", err, "consultation_id", id)
	r.rc.mu.Lock()
	if !r.rc.registered {
		if r.rc.startErr == nil {
			r.rc.startErr = err
		}
		r.rc.mu.Unlock()
		return
	}
	r.rc.mu.Unlock()
	go func() {
		if err := r.manager.Stop(context.Background(), id, StopReasonModelError); err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadyStopped) {
			slog.Error("failed to stop consultation after stream error", "error", err, "consultation_id", id)
		}
	}()
}

type transcriptReceiver struct {
	manager *Manager
	rc      *runningConsultation
}

func (r *transcriptReceiver) OnResult(text string, isFinal bool) {
	if !isFinal {
		return
	}
	r.manager.recordMessage(r.rc, live.SenderUser, text)
}

func (r *transcriptReceiver) OnError(err error) {
	id := r.rc.consultation.ID
	if errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "operation was cancelled") {
		slog.Info("transcriber stream canceled", "error", err, "consultation_id", id)
		return
	}
	slog.Error("transcriber stream error", "error", err, "consultation_id", id)
}
