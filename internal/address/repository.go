package address

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/storefront-backend/internal/apperr"
)

var ErrNotFound = apperr.NotFound("address not found")

type Repository interface {
	List(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID string, id int64) (Address, error)
	Create(ctx context.Context, a Address) (Address, error)
	Update(ctx context.Context, a Address) (Address, error)
	Delete(ctx context.Context, userID string, id int64) error
}

// InMemoryRepository for tests
type InMemoryRepository struct {
	mu     sync.RWMutex
	data   map[int64]Address
	nextID int64
}

func NewInMemoryRepository(seed []Address) *InMemoryRepository {
	r := &InMemoryRepository{data: make(map[int64]Address, len(seed)), nextID: 1}
	for _, a := range seed {
		if a.ID == 0 {
			a.ID = r.nextID
		}
		if a.ID >= r.nextID {
			r.nextID = a.ID + 1
		}
		r.data[a.ID] = a
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context, userID string) ([]Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Address, 0)
	for _, a := range r.data {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Get(_ context.Context, userID string, id int64) (Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[id]
	if !ok || a.UserID != userID {
		return Address{}, ErrNotFound
	}
	return a, nil
}

func (r *InMemoryRepository) Create(_ context.Context, a Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.data[a.ID] = a
	return a, nil
}

func (r *InMemoryRepository) Update(_ context.Context, a Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.data[a.ID]
	if !ok || existing.UserID != a.UserID {
		return Address{}, ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	r.data[a.ID] = a
	return a, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, userID string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}
