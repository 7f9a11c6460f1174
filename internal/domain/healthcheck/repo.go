package healthcheck

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists records together with their history. Create and
// Commit write the record and its history entry atomically.
type Repository interface {
	Create(ctx context.Context, rec *HealthCheckResult, entry *HistoryEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*HealthCheckResult, error)
	GetByCode(ctx context.Context, code string) (*HealthCheckResult, error)
	// List returns a snapshot of all records in creation order.
	List(ctx context.Context) ([]*HealthCheckResult, error)
	// Commit stores rec only if the stored version still equals
	// expectedVersion, appending entry in the same unit. It returns
	// ErrConcurrentModification otherwise and sets rec.VersionID on success.
	Commit(ctx context.Context, rec *HealthCheckResult, expectedVersion int, entry *HistoryEntry) error
	// History returns the entries of one record in chronological order.
	History(ctx context.Context, id uuid.UUID) ([]*HistoryEntry, error)
}
