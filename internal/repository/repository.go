package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/suma/internal/triage"
)

type CreateConsultationInput struct {
	ID        string
	Role      triage.Role
	Patient   triage.PatientData
	StartedAt time.Time
}

type CompleteConsultationInput struct {
	ConsultationID string
	EndedAt        time.Time
	StopReason     string
	Summary        string
}

type InsertMessageInput struct {
	ConsultationID string
	Sender         string
	Content        string
	MessageIndex   int
	SpokenAt       time.Time
}

type ConsultationRepository interface {
	CreateConsultation(ctx context.Context, input CreateConsultationInput) (*Consultation, error)
	CompleteConsultation(ctx context.Context, input CompleteConsultationInput) error
	// GetConsultation returns nil without error when id is unknown.
	GetConsultation(ctx context.Context, id string) (*Consultation, error)
	SetConsultationProtected(ctx context.Context, id string, protected bool) (bool, error)
	CompleteOrphanedConsultations(ctx context.Context, endedAt time.Time) (int64, error)
	DeleteExpiredConsultations(ctx context.Context, endedBefore time.Time) (int64, error)
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, input InsertMessageInput) error
	ListMessagesByConsultationID(ctx context.Context, consultationID string) ([]ConsultationMessage, error)
}

type Repository interface {
	ConsultationRepository
	MessageRepository
}
