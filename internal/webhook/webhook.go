package webhook

import "context"

const ConsultationReportSchemaVersion = 1

type ConsultationReportMessage struct {
	Index    int    `json:"index"`
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	SpokenAt string `json:"spoken_at"`
	Elapsed  string `json:"elapsed"`
}

type ConsultationReportPayload struct {
	SchemaVersion   int                         `json:"schema_version"`
	ConsultationID  string                      `json:"consultation_id"`
	Role            string                      `json:"role"`
	PatientName     string                      `json:"patient_name"`
	StartAt         string                      `json:"start_at"`
	EndAt           string                      `json:"end_at"`
	Timezone        string                      `json:"timezone"`
	DurationSeconds int64                       `json:"duration_seconds"`
	StopReason      string                      `json:"stop_reason"`
	MessageCount    int                         `json:"message_count"`
	Messages        []ConsultationReportMessage `json:"messages"`
	ReportText      string                      `json:"report_text"`
}

type Sender interface {
	SendReport(ctx context.Context, payload ConsultationReportPayload) error
}
