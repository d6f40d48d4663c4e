package thread

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps threads in process memory. It is used by the chat
// command and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	threads map[string]*Thread
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{threads: make(map[string]*Thread)}
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// List returns threads most recently updated first.
func (r *MemoryRepository) List(_ context.Context) ([]*Thread, error) {
	r.mu.RLock()
	out := make([]*Thread, 0, len(r.threads))
	for _, t := range r.threads {
		out = append(out, t.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Save(_ context.Context, t *Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[t.ID] = t.Clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[id]; !ok {
		return ErrNotFound
	}
	delete(r.threads, id)
	return nil
}
