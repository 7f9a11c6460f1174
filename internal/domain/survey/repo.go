package survey

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("survey not found")
	ErrAlreadyCompleted = errors.New("survey already completed")
)

type Repository interface {
	Create(ctx context.Context, s *Survey) error
	GetByID(ctx context.Context, id uuid.UUID) (*Survey, error)
	GetByHealthCheck(ctx context.Context, healthCheckID uuid.UUID) (*Survey, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Survey, int, error)
	// Complete stores the answer only while the survey is still pending.
	// A survey answered by a concurrent request yields ErrAlreadyCompleted.
	Complete(ctx context.Context, s *Survey) error
}
