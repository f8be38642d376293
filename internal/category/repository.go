package category

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wichananm65/storefront-backend/internal/apperr"
)

var (
	ErrCategoryNotFound = apperr.NotFound("category not found")
	ErrDuplicateName    = apperr.Conflict("category name already used in this shop")
)

// Repository provides access to category rows.
type Repository interface {
	// List returns a shop's categories by position, then id.
	List(ctx context.Context, shopID int64) ([]Category, error)
	Create(ctx context.Context, c Category) (Category, error)
	Delete(ctx context.Context, id int64) error
}

// InMemoryRepository is used by tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[int64]Category
	nextID  int64
}

func NewInMemoryRepository(seed []Category) *InMemoryRepository {
	r := &InMemoryRepository{storage: make(map[int64]Category, len(seed)), nextID: 1}
	for _, c := range seed {
		if c.ID == 0 {
			c.ID = r.nextID
		}
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
		r.storage[c.ID] = c
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context, shopID int64) ([]Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, 0)
	for _, c := range r.storage {
		if c.ShopID == shopID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *InMemoryRepository) Create(_ context.Context, c Category) (Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.ShopID == c.ShopID && strings.EqualFold(existing.Name, c.Name) {
			return Category{}, ErrDuplicateName
		}
	}
	c.ID = r.nextID
	r.nextID++
	c.CreatedAt = time.Now().UTC()
	r.storage[c.ID] = c
	return c, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(r.storage, id)
	return nil
}
