package config

import (
	"fmt"
	"time"
)

const (
	UserTranscriptionGemini      = "gemini"
	UserTranscriptionCloudSpeech = "cloud_speech"
)

type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	GeminiAPIKey               string
	GeminiLiveModel            string
	GeminiSupportModel         string
	SupportTemperature         float32
	LiveInputSampleRate        int
	LiveOutputSampleRate       int
	MaxConsultationDurationMin int
	ConsultationRetentionDays  int
	ReportTimezone             string
	ReportWebhookURL           string
	DiscordToken               string
	DiscordReportChannelID     string
	UserTranscription          string
	TranscribeLanguage         string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	RolePromptsPath            string
	WSAllowedOrigins           []string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.MaxConsultationDurationMin <= 0 {
		return fmt.Errorf("MAX_CONSULTATION_DURATION_MIN must be positive, got %d", c.MaxConsultationDurationMin)
	}
	if c.ConsultationRetentionDays <= 0 {
		return fmt.Errorf("CONSULTATION_RETENTION_DAYS must be positive, got %d", c.ConsultationRetentionDays)
	}
	if c.LiveInputSampleRate <= 0 || c.LiveOutputSampleRate <= 0 {
		return fmt.Errorf("LIVE_INPUT_SAMPLE_RATE and LIVE_OUTPUT_SAMPLE_RATE must be positive, got %d and %d", c.LiveInputSampleRate, c.LiveOutputSampleRate)
	}
	if c.SupportTemperature < 0 || c.SupportTemperature > 2 {
		return fmt.Errorf("SUPPORT_TEMPERATURE must be between 0 and 2, got %v", c.SupportTemperature)
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE is invalid: %w", err)
	}
	if (c.DiscordToken == "") != (c.DiscordReportChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_REPORT_CHANNEL_ID must be set together")
	}
	switch c.UserTranscription {
	case UserTranscriptionGemini:
	case UserTranscriptionCloudSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when USER_TRANSCRIPTION=%s", UserTranscriptionCloudSpeech)
		}
	default:
		return fmt.Errorf("USER_TRANSCRIPTION must be %q or %q, got %q", UserTranscriptionGemini, UserTranscriptionCloudSpeech, c.UserTranscription)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "GEMINI_API_KEY", value: c.GeminiAPIKey},
		{name: "GEMINI_LIVE_MODEL", value: c.GeminiLiveModel},
		{name: "GEMINI_SUPPORT_MODEL", value: c.GeminiSupportModel},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "REPORT_TIMEZONE", value: c.ReportTimezone},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) MaxConsultationDuration() time.Duration {
	return time.Duration(c.MaxConsultationDurationMin) * time.Minute
}

func (c *Config) ConsultationRetention() time.Duration {
	return time.Duration(c.ConsultationRetentionDays) * 24 * time.Hour
}

func (c *Config) UsesCloudSpeech() bool {
	return c.UserTranscription == UserTranscriptionCloudSpeech
}
