package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/storefront-backend/internal/apperr"
)

var (
	ErrProductNotFound   = apperr.NotFound("product not found")
	ErrVariantNotFound   = apperr.NotFound("variant not found")
	ErrInsufficientStock = apperr.Conflict("insufficient stock")
)

// Reader is the read side of the catalog consumed by the cart and order
// pipeline.
type Reader interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	// GetProducts returns the products that exist among ids; missing ids are
	// simply absent from the map.
	GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
}

// StockReserver decrements stock for a set of requests, all or nothing.
type StockReserver interface {
	ReserveStock(ctx context.Context, reqs []StockRequest) error
}

type Repository interface {
	Reader
	StockReserver
	List(ctx context.Context, shopID int64) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, id int64, p Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// InMemoryRepository is a simple in-memory implementation useful for tests and
// seeding local data.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[int64]Product
	nextID  int64
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{
		storage: make(map[int64]Product, len(seed)),
		nextID:  1,
	}
	for _, p := range seed {
		if p.ID == 0 {
			p.ID = r.nextID
		}
		r.storage[p.ID] = clone(p)
		if p.ID >= r.nextID {
			r.nextID = p.ID + 1
		}
	}
	return r
}

func (r *InMemoryRepository) GetProduct(_ context.Context, id int64) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return clone(p), nil
}

func (r *InMemoryRepository) GetProducts(_ context.Context, ids []int64) (map[int64]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]Product, len(ids))
	for _, id := range ids {
		if p, ok := r.storage[id]; ok {
			out[id] = clone(p)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) List(_ context.Context, shopID int64) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0)
	for _, p := range r.storage {
		if shopID == 0 || p.ShopID == shopID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Create(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
	}
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.storage[p.ID] = clone(p)
	return clone(p), nil
}

func (r *InMemoryRepository) Update(_ context.Context, id int64, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.storage[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p.ID = id
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	r.storage[id] = clone(p)
	return clone(p), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[id]; !ok {
		return ErrProductNotFound
	}
	delete(r.storage, id)
	return nil
}

// ReserveStock checks every request before decrementing anything.
func (r *InMemoryRepository) ReserveStock(_ context.Context, reqs []StockRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	needed := aggregate(reqs)
	for key, qty := range needed {
		p, ok := r.storage[key.productID]
		if !ok {
			return fmt.Errorf("reserve product %d: %w", key.productID, ErrProductNotFound)
		}
		if key.variantID != "" {
			if _, ok := p.Variant(key.variantID); !ok {
				return fmt.Errorf("reserve product %d variant %s: %w", key.productID, key.variantID, ErrVariantNotFound)
			}
		}
		if p.Available(key.variantID) < qty {
			return fmt.Errorf("%w for %q: requested %d, available %d", ErrInsufficientStock, p.Name, qty, p.Available(key.variantID))
		}
	}

	for key, qty := range needed {
		p := r.storage[key.productID]
		if key.variantID == "" {
			p.StockQuantity -= qty
		} else {
			for i := range p.Variants {
				if p.Variants[i].ID == key.variantID {
					p.Variants[i].StockQuantity -= qty
				}
			}
		}
		p.UpdatedAt = time.Now().UTC()
		r.storage[key.productID] = p
	}
	return nil
}

type stockKey struct {
	productID int64
	variantID string
}

func aggregate(reqs []StockRequest) map[stockKey]int {
	out := make(map[stockKey]int, len(reqs))
	for _, req := range reqs {
		if req.Quantity <= 0 {
			continue
		}
		out[stockKey{req.ProductID, req.VariantID}] += req.Quantity
	}
	return out
}

// clone deep-copies the slices and maps of p so callers cannot mutate stored
// state through a returned snapshot.
func clone(p Product) Product {
	if p.CategoryIDs != nil {
		p.CategoryIDs = append([]int64(nil), p.CategoryIDs...)
	}
	if p.Variants != nil {
		vs := make([]Variant, len(p.Variants))
		for i, v := range p.Variants {
			if v.Attributes != nil {
				attrs := make(map[string]string, len(v.Attributes))
				for k, val := range v.Attributes {
					attrs[k] = val
				}
				v.Attributes = attrs
			}
			vs[i] = v
		}
		p.Variants = vs
	}
	return p
}
