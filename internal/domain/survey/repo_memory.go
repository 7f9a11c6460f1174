package survey

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*Survey
}

// NewMemoryRepo returns a Repository held in process memory.
func NewMemoryRepo() Repository {
	return &memoryRepo{data: make(map[uuid.UUID]*Survey)}
}

func (r *memoryRepo) Create(_ context.Context, s *Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.HealthCheckID == s.HealthCheckID {
			return fmt.Errorf("survey for health check %s already exists", s.HealthCheckID)
		}
	}
	c := *s
	r.data[s.ID] = &c
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Survey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.data[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) GetByHealthCheck(_ context.Context, healthCheckID uuid.UUID) (*Survey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.data {
		if s.HealthCheckID == healthCheckID {
			c := *s
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Survey, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*Survey
	for _, s := range r.data {
		if s.PatientID == patientID {
			c := *s
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memoryRepo) Complete(_ context.Context, s *Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != StatusPending {
		return ErrAlreadyCompleted
	}
	c := *s
	r.data[s.ID] = &c
	return nil
}
