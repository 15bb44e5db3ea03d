package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/suma/internal/repository"
	"github.com/foxseedlab/suma/internal/triage"
	"github.com/foxseedlab/suma/internal/webhook"
)

const (
	reportTimeLayout = "2006-01-02 15:04:05"
	maxSummaryRunes  = 500
)

type reportInput struct {
	Consultation *repository.Consultation
	RoleLabel    string
	EndedAt      time.Time
	StopReason   string
	Timezone     string
	Location     *time.Location
	Messages     []repository.ConsultationMessage
}

func buildReportText(in reportInput) []byte {
	c := in.Consultation
	loc := safeLocation(in.Location)
	p := c.Patient

	lines := []string{
		fmt.Sprintf("Consulta: %s", c.ID),
		fmt.Sprintf("Rol: %s", roleLabel(in.RoleLabel, c.Role)),
		fmt.Sprintf("Paciente: %s, %s años, %s", p.Name, p.Age, p.Sex),
		fmt.Sprintf("Medicación: %s", p.Medication),
		fmt.Sprintf("Antecedentes: %s", p.History),
		fmt.Sprintf("Periodo: %s ~ %s (%s)",
			c.StartedAt.In(loc).Format(reportTimeLayout),
			in.EndedAt.In(loc).Format(reportTimeLayout),
			in.Timezone),
		fmt.Sprintf("Motivo de cierre: %s", stopReasonDetail(in.StopReason)),
		"",
	}
	for _, msg := range in.Messages {
		lines = append(lines, fmt.Sprintf("%s [%s] %s",
			formatElapsedHMS(msg.SpokenAt.Sub(c.StartedAt)), senderLabel(msg.Sender), msg.Content))
	}
	return []byte(strings.Join(lines, "\n"))
}

func buildReportPayload(in reportInput, reportText []byte) webhook.ConsultationReportPayload {
	c := in.Consultation
	loc := safeLocation(in.Location)

	durationSeconds := int64(in.EndedAt.Sub(c.StartedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	messages := make([]webhook.ConsultationReportMessage, 0, len(in.Messages))
	for _, msg := range in.Messages {
		messages = append(messages, webhook.ConsultationReportMessage{
			Index:    msg.MessageIndex,
			Sender:   msg.Sender,
			Text:     msg.Content,
			SpokenAt: msg.SpokenAt.In(loc).Format(time.RFC3339),
			Elapsed:  formatElapsedHMS(msg.SpokenAt.Sub(c.StartedAt)),
		})
	}

	return webhook.ConsultationReportPayload{
		SchemaVersion:   webhook.ConsultationReportSchemaVersion,
		ConsultationID:  c.ID,
		Role:            string(c.Role),
		PatientName:     c.Patient.Name,
		StartAt:         c.StartedAt.In(loc).Format(time.RFC3339),
		EndAt:           in.EndedAt.In(loc).Format(time.RFC3339),
		Timezone:        in.Timezone,
		DurationSeconds: durationSeconds,
		StopReason:      in.StopReason,
		MessageCount:    len(in.Messages),
		Messages:        messages,
		ReportText:      string(reportText),
	}
}

// summarize keeps the model's last answer as the consultation summary.
func summarize(messages []repository.ConsultationMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Sender != "bot" {
			continue
		}
		text := strings.TrimSpace(messages[i].Content)
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > maxSummaryRunes {
			return string(runes[:maxSummaryRunes]) + "…"
		}
		return text
	}
	return ""
}

func roleLabel(label string, role triage.Role) string {
	if label == "" {
		return string(role)
	}
	return fmt.Sprintf("%s (%s)", label, role)
}

func formatElapsedHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
