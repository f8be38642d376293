package catalog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheItem struct {
	product    Product
	expiration int64
}

// CachedReader keeps recently read products for ttl. Concurrent misses for the
// same id share one load. A ttl of zero or less disables caching.
type CachedReader struct {
	inner Reader
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	items map[int64]cacheItem
	group singleflight.Group
}

func NewCachedReader(inner Reader, ttl time.Duration) *CachedReader {
	return &CachedReader{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[int64]cacheItem),
	}
}

func (c *CachedReader) GetProduct(ctx context.Context, id int64) (Product, error) {
	if c.ttl <= 0 {
		return c.inner.GetProduct(ctx, id)
	}
	if p, ok := c.lookup(id); ok {
		return p, nil
	}
	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		p, err := c.inner.GetProduct(ctx, id)
		if err != nil {
			return Product{}, err
		}
		c.store(p)
		return p, nil
	})
	if err != nil {
		return Product{}, err
	}
	return clone(v.(Product)), nil
}

// GetProducts serves cached ids and loads the rest in one batch.
func (c *CachedReader) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	if c.ttl <= 0 {
		return c.inner.GetProducts(ctx, ids)
	}
	out := make(map[int64]Product, len(ids))
	missing := make([]int64, 0)
	for _, id := range ids {
		if p, ok := c.lookup(id); ok {
			out[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	loaded, err := c.inner.GetProducts(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range loaded {
		c.store(p)
		out[id] = clone(p)
	}
	return out, nil
}

// Invalidate drops ids from the cache.
func (c *CachedReader) Invalidate(ids ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
	}
}

func (c *CachedReader) lookup(id int64) (Product, bool) {
	c.mu.RLock()
	item, ok := c.items[id]
	c.mu.RUnlock()
	if !ok {
		return Product{}, false
	}
	if c.now().UnixNano() > item.expiration {
		c.Invalidate(id)
		return Product{}, false
	}
	return clone(item.product), true
}

func (c *CachedReader) store(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = cacheItem{
		product:    clone(p),
		expiration: c.now().Add(c.ttl).UnixNano(),
	}
}
