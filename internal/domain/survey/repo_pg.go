package survey

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthcheck/healthcheck/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type surveyRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &surveyRepoPG{pool: pool} }

func (r *surveyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const surveyCols = `id, health_check_id, health_check_code, patient_id, patient_name, patient_email,
	status, link, rating, comment, expires_at, completed_at, created_at, updated_at`

func (r *surveyRepoPG) scan(row pgx.Row) (*Survey, error) {
	var s Survey
	err := row.Scan(&s.ID, &s.HealthCheckID, &s.HealthCheckCode, &s.PatientID, &s.PatientName, &s.PatientEmail,
		&s.Status, &s.Link, &s.Rating, &s.Comment, &s.ExpiresAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *surveyRepoPG) Create(ctx context.Context, s *Survey) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO post_visit_survey (`+surveyCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		s.ID, s.HealthCheckID, s.HealthCheckCode, s.PatientID, s.PatientName, s.PatientEmail,
		s.Status, s.Link, s.Rating, s.Comment, s.ExpiresAt, s.CompletedAt, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *surveyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Survey, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+surveyCols+` FROM post_visit_survey WHERE id = $1`, id))
}

func (r *surveyRepoPG) GetByHealthCheck(ctx context.Context, healthCheckID uuid.UUID) (*Survey, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+surveyCols+` FROM post_visit_survey WHERE health_check_id = $1`, healthCheckID))
}

func (r *surveyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Survey, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM post_visit_survey WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+surveyCols+` FROM post_visit_survey WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Survey
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *surveyRepoPG) Complete(ctx context.Context, s *Survey) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE post_visit_survey SET status=$2, rating=$3, comment=$4, completed_at=$5, updated_at=$6
		WHERE id = $1 AND status = 'pending'`,
		s.ID, s.Status, s.Rating, s.Comment, s.CompletedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM post_visit_survey WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyCompleted
}
