package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wichananm65/storefront-backend/internal/apperr"
)

var (
	ErrCartNotFound = apperr.NotFound("cart not found")
	ErrLineNotFound = apperr.NotFound("cart line not found")
)

// errNoChange returned from a mutation callback leaves storage untouched.
var errNoChange = errors.New("cart unchanged")

// Mutation edits a cart in place. A cart that does not exist yet is passed
// with Version 0 and no lines.
type Mutation func(c *Cart) error

// MoveMutation merges source into target. sourceFound is false when no
// source cart is stored.
type MoveMutation func(target *Cart, source Cart, sourceFound bool) error

// Repository stores carts keyed by (shop, user). Update and Move are
// serialized read-modify-write operations: concurrent calls on the same key
// never lose an update.
type Repository interface {
	Get(ctx context.Context, key Key) (Cart, error)
	Update(ctx context.Context, key Key, fn Mutation) (Cart, error)
	// Move applies fn and then deletes the source cart in one step.
	Move(ctx context.Context, from, to Key, fn MoveMutation) (Cart, error)
	Delete(ctx context.Context, key Key) error
}

// InMemoryRepository keeps carts in a map and serializes writers with one
// mutex per key.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[Key]Cart

	locksMu sync.Mutex
	locks   map[Key]*sync.Mutex
}

func NewInMemoryRepository(seed []Cart) *InMemoryRepository {
	r := &InMemoryRepository{
		storage: make(map[Key]Cart, len(seed)),
		locks:   make(map[Key]*sync.Mutex),
	}
	for _, c := range seed {
		if c.Version == 0 {
			c.Version = 1
		}
		r.storage[c.Key] = c.clone()
	}
	return r
}

func (r *InMemoryRepository) lock(key Key) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func (r *InMemoryRepository) load(key Key) (Cart, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.storage[key]
	if !ok {
		return Cart{Key: key}, false
	}
	return c.clone(), true
}

func (r *InMemoryRepository) save(c Cart) Cart {
	now := time.Now().UTC()
	if c.Version == 0 {
		c.CreatedAt = now
	}
	c.Version++
	c.UpdatedAt = now
	r.mu.Lock()
	r.storage[c.Key] = c.clone()
	r.mu.Unlock()
	return c
}

func (r *InMemoryRepository) Get(_ context.Context, key Key) (Cart, error) {
	c, ok := r.load(key)
	if !ok {
		return Cart{}, ErrCartNotFound
	}
	return c, nil
}

func (r *InMemoryRepository) Update(_ context.Context, key Key, fn Mutation) (Cart, error) {
	l := r.lock(key)
	l.Lock()
	defer l.Unlock()

	c, _ := r.load(key)
	before := c.clone()
	if err := fn(&c); err != nil {
		if errors.Is(err, errNoChange) {
			return before, nil
		}
		return Cart{}, err
	}
	c.Key = key
	return r.save(c), nil
}

// Move locks both keys in key order so two opposite merges cannot deadlock.
func (r *InMemoryRepository) Move(_ context.Context, from, to Key, fn MoveMutation) (Cart, error) {
	first, second := r.lock(from), r.lock(to)
	if to.less(from) {
		first, second = second, first
	}
	first.Lock()
	defer first.Unlock()
	if from != to {
		second.Lock()
		defer second.Unlock()
	}

	source, found := r.load(from)
	target, _ := r.load(to)
	before := target.clone()
	if err := fn(&target, source, found); err != nil {
		if errors.Is(err, errNoChange) {
			return before, nil
		}
		return Cart{}, err
	}
	target.Key = to
	saved := r.save(target)
	if found && from != to {
		r.mu.Lock()
		delete(r.storage, from)
		r.mu.Unlock()
	}
	return saved, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, key Key) error {
	l := r.lock(key)
	l.Lock()
	defer l.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.storage, key)
	return nil
}
