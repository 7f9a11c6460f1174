package healthcheck

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*HealthCheckResult
	order   []uuid.UUID
	history map[uuid.UUID][]*HistoryEntry
}

// NewMemoryRepo returns a Repository held in process memory.
func NewMemoryRepo() Repository {
	return &memoryRepo{
		records: make(map[uuid.UUID]*HealthCheckResult),
		history: make(map[uuid.UUID][]*HistoryEntry),
	}
}

func (r *memoryRepo) Create(_ context.Context, rec *HealthCheckResult, entry *HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return fmt.Errorf("health check result %s already exists", rec.ID)
	}
	for _, existing := range r.records {
		if existing.Code == rec.Code {
			return fmt.Errorf("health check code %s already issued", rec.Code)
		}
	}
	r.records[rec.ID] = rec.Clone()
	r.order = append(r.order, rec.ID)
	e := *entry
	r.history[rec.ID] = []*HistoryEntry{&e}
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*HealthCheckResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *memoryRepo) GetByCode(_ context.Context, code string) (*HealthCheckResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.Code == code {
			return rec.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) List(_ context.Context) ([]*HealthCheckResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*HealthCheckResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].Clone())
	}
	return out, nil
}

func (r *memoryRepo) Commit(_ context.Context, rec *HealthCheckResult, expectedVersion int, entry *HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if current.VersionID != expectedVersion {
		return ErrConcurrentModification
	}
	rec.VersionID = expectedVersion + 1
	r.records[rec.ID] = rec.Clone()
	e := *entry
	r.history[rec.ID] = append(r.history[rec.ID], &e)
	return nil
}

func (r *memoryRepo) History(_ context.Context, id uuid.UUID) ([]*HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.records[id]; !ok {
		return nil, ErrNotFound
	}
	entries := r.history[id]
	out := make([]*HistoryEntry, len(entries))
	for i, e := range entries {
		c := *e
		out[i] = &c
	}
	return out, nil
}
