package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/suma/internal/config"
)

type envConfig struct {
	Env                        string   `env:"ENV" envDefault:"production"`
	HTTPAddr                   string   `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL                string   `env:"DATABASE_URL,required"`
	GeminiAPIKey               string   `env:"GEMINI_API_KEY,required"`
	GeminiLiveModel            string   `env:"GEMINI_LIVE_MODEL" envDefault:"gemini-live-2.5-flash-preview"`
	GeminiSupportModel         string   `env:"GEMINI_SUPPORT_MODEL" envDefault:"gemini-2.5-flash"`
	SupportTemperature         float32  `env:"SUPPORT_TEMPERATURE" envDefault:"0.3"`
	LiveInputSampleRate        int      `env:"LIVE_INPUT_SAMPLE_RATE" envDefault:"16000"`
	LiveOutputSampleRate       int      `env:"LIVE_OUTPUT_SAMPLE_RATE" envDefault:"24000"`
	MaxConsultationDurationMin int      `env:"MAX_CONSULTATION_DURATION_MIN" envDefault:"60"`
	ConsultationRetentionDays  int      `env:"CONSULTATION_RETENTION_DAYS" envDefault:"30"`
	ReportTimezone             string   `env:"REPORT_TIMEZONE" envDefault:"America/Mexico_City"`
	ReportWebhookURL           string   `env:"REPORT_WEBHOOK_URL"`
	DiscordToken               string   `env:"DISCORD_TOKEN"`
	DiscordReportChannelID     string   `env:"DISCORD_REPORT_CHANNEL_ID"`
	UserTranscription          string   `env:"USER_TRANSCRIPTION" envDefault:"gemini"`
	TranscribeLanguage         string   `env:"TRANSCRIBE_LANGUAGE" envDefault:"es-MX"`
	GoogleCloudProjectID       string   `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string   `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string   `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"us-central1"`
	GoogleCloudSpeechModel     string   `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	RolePromptsPath            string   `env:"ROLE_PROMPTS_PATH"`
	WSAllowedOrigins           []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		DatabaseURL:                raw.DatabaseURL,
		GeminiAPIKey:               raw.GeminiAPIKey,
		GeminiLiveModel:            raw.GeminiLiveModel,
		GeminiSupportModel:         raw.GeminiSupportModel,
		SupportTemperature:         raw.SupportTemperature,
		LiveInputSampleRate:        raw.LiveInputSampleRate,
		LiveOutputSampleRate:       raw.LiveOutputSampleRate,
		MaxConsultationDurationMin: raw.MaxConsultationDurationMin,
		ConsultationRetentionDays:  raw.ConsultationRetentionDays,
		ReportTimezone:             raw.ReportTimezone,
		ReportWebhookURL:           raw.ReportWebhookURL,
		DiscordToken:               raw.DiscordToken,
		DiscordReportChannelID:     raw.DiscordReportChannelID,
		UserTranscription:          raw.UserTranscription,
		TranscribeLanguage:         raw.TranscribeLanguage,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		RolePromptsPath:            raw.RolePromptsPath,
		WSAllowedOrigins:           raw.WSAllowedOrigins,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
