package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a PostgreSQL-backed Repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const resultCols = `id, code, patient_id, patient_name, patient_email, staff_id, staff_name,
	checkup_date, details, attachment_url, status, status_before_delete,
	follow_up_required, follow_up_date, approved_date, cancelled_date, cancellation_reason,
	deleted_at, created_by, updated_by, version_id, created_at, updated_at`

const historyCols = `id, record_id, action, timestamp, actor_id, previous_status, new_status, details`

func (r *repoPG) scanResult(row pgx.Row) (*HealthCheckResult, error) {
	var rec HealthCheckResult
	var details []byte
	err := row.Scan(&rec.ID, &rec.Code, &rec.PatientID, &rec.PatientName, &rec.PatientEmail, &rec.StaffID, &rec.StaffName,
		&rec.CheckupDate, &details, &rec.AttachmentURL, &rec.Status, &rec.StatusBeforeDelete,
		&rec.FollowUpRequired, &rec.FollowUpDate, &rec.ApprovedDate, &rec.CancelledDate, &rec.CancellationReason,
		&rec.DeletedAt, &rec.CreatedBy, &rec.UpdatedBy, &rec.VersionID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func insertHistory(ctx context.Context, q pgx.Tx, e *HistoryEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO health_check_history (`+historyCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.RecordID, e.Action, e.Timestamp, e.ActorID, e.PreviousStatus, e.NewStatus, e.Details)
	return err
}

func (r *repoPG) Create(ctx context.Context, rec *HealthCheckResult, entry *HistoryEntry) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		_, err := tx.Exec(ctx, `
			INSERT INTO health_check_result (`+resultCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
			rec.ID, rec.Code, rec.PatientID, rec.PatientName, rec.PatientEmail, rec.StaffID, rec.StaffName,
			rec.CheckupDate, details, rec.AttachmentURL, rec.Status, rec.StatusBeforeDelete,
			rec.FollowUpRequired, rec.FollowUpDate, rec.ApprovedDate, rec.CancelledDate, rec.CancellationReason,
			rec.DeletedAt, rec.CreatedBy, rec.UpdatedBy, rec.VersionID, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert health check result: %w", err)
		}
		if err := insertHistory(ctx, tx, entry); err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
		return nil
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*HealthCheckResult, error) {
	return r.scanResult(r.conn(ctx).QueryRow(ctx, `SELECT `+resultCols+` FROM health_check_result WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*HealthCheckResult, error) {
	return r.scanResult(r.conn(ctx).QueryRow(ctx, `SELECT `+resultCols+` FROM health_check_result WHERE code = $1`, code))
}

func (r *repoPG) List(ctx context.Context) ([]*HealthCheckResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+resultCols+` FROM health_check_result ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*HealthCheckResult
	for rows.Next() {
		rec, err := r.scanResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *repoPG) Commit(ctx context.Context, rec *HealthCheckResult, expectedVersion int, entry *HistoryEntry) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	err = db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		tag, err := tx.Exec(ctx, `
			UPDATE health_check_result SET status=$2, status_before_delete=$3, follow_up_required=$4,
				follow_up_date=$5, approved_date=$6, cancelled_date=$7, cancellation_reason=$8,
				deleted_at=$9, details=$10, updated_by=$11, updated_at=$12, version_id=version_id+1
			WHERE id = $1 AND version_id = $13`,
			rec.ID, rec.Status, rec.StatusBeforeDelete, rec.FollowUpRequired,
			rec.FollowUpDate, rec.ApprovedDate, rec.CancelledDate, rec.CancellationReason,
			rec.DeletedAt, details, rec.UpdatedBy, rec.UpdatedAt, expectedVersion)
		if err != nil {
			return fmt.Errorf("update health check result: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM health_check_result WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrConcurrentModification
		}
		if err := insertHistory(ctx, tx, entry); err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	rec.VersionID = expectedVersion + 1
	return nil
}

func (r *repoPG) History(ctx context.Context, id uuid.UUID) ([]*HistoryEntry, error) {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM health_check_result WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+historyCols+` FROM health_check_history WHERE record_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Action, &e.Timestamp, &e.ActorID, &e.PreviousStatus, &e.NewStatus, &e.Details); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}
