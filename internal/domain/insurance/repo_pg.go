package insurance

import (
	"context"
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

type cardRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &cardRepoPG{pool: pool} }

func (r *cardRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const cardCols = `id, patient_id, holder_name, card_number, provider, valid_from, valid_to,
	card_image_url, created_at, updated_at`

func scanCard(row pgx.Row) (*Card, error) {
	var c Card
	err := row.Scan(&c.ID, &c.PatientID, &c.HolderName, &c.CardNumber, &c.Provider, &c.ValidFrom, &c.ValidTo,
		&c.CardImageURL, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *cardRepoPG) Create(ctx context.Context, c *Card) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO health_insurance (`+cardCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.PatientID, c.HolderName, c.CardNumber, c.Provider, c.ValidFrom, c.ValidTo,
		c.CardImageURL, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *cardRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Card, error) {
	c, err := scanCard(r.conn(ctx).QueryRow(ctx, `SELECT `+cardCols+` FROM health_insurance WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *cardRepoPG) List(ctx context.Context) ([]*Card, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+cardCols+` FROM health_insurance ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan insurance card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
