package insurance

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("insurance card not found")

type Repository interface {
	Create(ctx context.Context, c *Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*Card, error)
	// List returns all cards ordered by creation time.
	List(ctx context.Context) ([]*Card, error)
}
