package insurance

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu    sync.RWMutex
	order []uuid.UUID
	data  map[uuid.UUID]*Card
}

// NewMemoryRepo returns a Repository held in process memory.
func NewMemoryRepo() Repository {
	return &memoryRepo{data: make(map[uuid.UUID]*Card)}
}

func (r *memoryRepo) Create(_ context.Context, c *Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.data[c.ID] = &cp
	r.order = append(r.order, c.ID)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepo) List(_ context.Context) ([]*Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Card, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.data[id]
		out = append(out, &cp)
	}
	return out, nil
}
