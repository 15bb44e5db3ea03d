package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/suma/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const consultationColumns = `id, role, patient_name, patient_age, patient_sex, patient_medication, patient_history,
	started_at, ended_at, status, stop_reason, summary, protected, created_at`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func scanConsultation(row pgx.Row) (*repository.Consultation, error) {
	var c repository.Consultation
	err := row.Scan(&c.ID, &c.Role, &c.Patient.Name, &c.Patient.Age, &c.Patient.Sex, &c.Patient.Medication, &c.Patient.History,
		&c.StartedAt, &c.EndedAt, &c.Status, &c.StopReason, &c.Summary, &c.Protected, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) CreateConsultation(ctx context.Context, input repository.CreateConsultationInput) (*repository.Consultation, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO consultations (id, role, patient_name, patient_age, patient_sex, patient_medication, patient_history, started_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'running')
		 RETURNING `+consultationColumns,
		input.ID, string(input.Role), input.Patient.Name, input.Patient.Age, input.Patient.Sex,
		input.Patient.Medication, input.Patient.History, input.StartedAt)
	return scanConsultation(row)
}

func (r *PostgresRepository) CompleteConsultation(ctx context.Context, input repository.CompleteConsultationInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE consultations SET status = 'completed', ended_at = $2, stop_reason = $3, summary = $4 WHERE id = $1`,
		input.ConsultationID, input.EndedAt, input.StopReason, input.Summary)
	return err
}

func (r *PostgresRepository) GetConsultation(ctx context.Context, id string) (*repository.Consultation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE id = $1`, id)
	c, err := scanConsultation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) SetConsultationProtected(ctx context.Context, id string, protected bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE consultations SET protected = $2 WHERE id = $1`, id, protected)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) CompleteOrphanedConsultations(ctx context.Context, endedAt time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE consultations SET status = 'completed', ended_at = $1, stop_reason = 'server_restarted' WHERE status = 'running'`,
		endedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteExpiredConsultations(ctx context.Context, endedBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM consultations WHERE status = 'completed' AND NOT protected AND ended_at < $1`,
		endedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) InsertMessage(ctx context.Context, input repository.InsertMessageInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO consultation_messages (consultation_id, sender, content, message_index, spoken_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		input.ConsultationID, input.Sender, input.Content, input.MessageIndex, input.SpokenAt)
	return err
}

func (r *PostgresRepository) ListMessagesByConsultationID(ctx context.Context, consultationID string) ([]repository.ConsultationMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, consultation_id, sender, content, message_index, spoken_at, created_at
		 FROM consultation_messages WHERE consultation_id = $1 ORDER BY message_index ASC`,
		consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.ConsultationMessage
	for rows.Next() {
		var m repository.ConsultationMessage
		if err := rows.Scan(&m.ID, &m.ConsultationID, &m.Sender, &m.Content, &m.MessageIndex, &m.SpokenAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
