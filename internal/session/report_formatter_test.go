package session

import (
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/suma/internal/repository"
	"github.com/foxseedlab/suma/internal/triage"
	"github.com/foxseedlab/suma/internal/webhook"
)

func testReportInput(t *testing.T) reportInput {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	return reportInput{
		Consultation: &repository.Consultation{
			ID:   "c-1",
			Role: triage.RoleParamedico,
			Patient: triage.PatientData{
				Name: "Ana López", Age: "34", Sex: "Femenino",
				Medication: "Ninguna", History: "Asma",
			},
			StartedAt: start,
		},
		RoleLabel:  "Paramédico",
		EndedAt:    start.Add(2*time.Minute + 5*time.Second),
		StopReason: StopReasonClientRequest,
		Timezone:   "America/Mexico_City",
		Location:   loc,
		Messages: []repository.ConsultationMessage{
			{MessageIndex: 0, Sender: "bot", Content: "Conectado", SpokenAt: start},
			{MessageIndex: 1, Sender: "user", Content: "Dificultad para respirar", SpokenAt: start.Add(5 * time.Second)},
			{MessageIndex: 2, Sender: "bot", Content: "Administre oxígeno", SpokenAt: start.Add(65 * time.Second)},
		},
	}
}

func TestBuildReportText(t *testing.T) {
	text := string(buildReportText(testReportInput(t)))

	for _, want := range []string{
		"Consulta: c-1",
		"Rol: Paramédico (PARAMEDICO)",
		"Paciente: Ana López, 34 años, Femenino",
		"Periodo: 2026-03-01 12:00:00 ~ 2026-03-01 12:02:05 (America/Mexico_City)",
		"Motivo de cierre: El usuario finalizó la consulta.",
		"00:00:05 [Usuario] Dificultad para respirar",
		"00:01:05 [SUMA] Administre oxígeno",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q\n%s", want, text)
		}
	}
}

func TestBuildReportPayload(t *testing.T) {
	in := testReportInput(t)
	payload := buildReportPayload(in, []byte("texto"))

	if payload.SchemaVersion != webhook.ConsultationReportSchemaVersion {
		t.Fatalf("unexpected schema version: %d", payload.SchemaVersion)
	}
	if payload.DurationSeconds != 125 {
		t.Fatalf("expected 125 seconds, got %d", payload.DurationSeconds)
	}
	if payload.MessageCount != 3 || len(payload.Messages) != 3 {
		t.Fatalf("unexpected message count: %d", payload.MessageCount)
	}
	if payload.Messages[2].Elapsed != "00:01:05" {
		t.Fatalf("unexpected elapsed: %s", payload.Messages[2].Elapsed)
	}
	if payload.StartAt != "2026-03-01T12:00:00-06:00" {
		t.Fatalf("unexpected start: %s", payload.StartAt)
	}
	if payload.Role != "PARAMEDICO" || payload.ReportText != "texto" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSummarize(t *testing.T) {
	in := testReportInput(t)
	if got := summarize(in.Messages); got != "Administre oxígeno" {
		t.Fatalf("unexpected summary: %q", got)
	}
	if got := summarize(nil); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
	long := strings.Repeat("á", maxSummaryRunes+10)
	got := summarize([]repository.ConsultationMessage{{Sender: "bot", Content: long}})
	if len([]rune(got)) != maxSummaryRunes+1 {
		t.Fatalf("expected truncated summary, got %d runes", len([]rune(got)))
	}
}

func TestFormatElapsedHMS(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
	}
	for _, tc := range cases {
		if got := formatElapsedHMS(tc.d); got != tc.want {
			t.Fatalf("formatElapsedHMS(%v) = %s, want %s", tc.d, got, tc.want)
		}
	}
}
