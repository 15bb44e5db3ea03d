package repository

import (
	"time"

	"github.com/foxseedlab/suma/internal/triage"
)

type ConsultationStatus string

const (
	ConsultationStatusRunning   ConsultationStatus = "running"
	ConsultationStatusCompleted ConsultationStatus = "completed"
)

type Consultation struct {
	ID         string
	Role       triage.Role
	Patient    triage.PatientData
	StartedAt  time.Time
	EndedAt    *time.Time
	Status     ConsultationStatus
	StopReason string
	Summary    string
	// Protected consultations are skipped by retention purges.
	Protected bool
	CreatedAt time.Time
}

type ConsultationMessage struct {
	ID             string
	ConsultationID string
	Sender         string
	Content        string
	MessageIndex   int
	SpokenAt       time.Time
	CreatedAt      time.Time
}
