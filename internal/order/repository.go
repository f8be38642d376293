package order

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/catalog"
)

var ErrOrderNotFound = apperr.NotFound("order not found")

// errDuplicateTracking reports a tracking id collision; Create retries with a
// fresh id.
var errDuplicateTracking = errors.New("duplicate tracking id")

// Repository persists orders.
type Repository interface {
	// Create reserves stock for every line and stores o in one atomic step.
	// Insufficient stock leaves nothing behind.
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	GetByTracking(ctx context.Context, trackingID string) (Order, error)
	// List returns orders newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	// Transition runs fn against the current state of the order while no
	// other transition on it can run, and stores the result if fn succeeds.
	Transition(ctx context.Context, id int64, fn func(o *Order) error) (Order, error)
	Stats(ctx context.Context, shopID int64, since time.Time) (Stats, error)
	Delete(ctx context.Context, id int64) error
}

func stockRequests(lines []Line) []catalog.StockRequest {
	reqs := make([]catalog.StockRequest, 0, len(lines))
	for _, l := range lines {
		reqs = append(reqs, catalog.StockRequest{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return reqs
}

// InMemoryRepository is used for tests and local runs. Stock is reserved
// through stock, which may be nil to skip reservation.
type InMemoryRepository struct {
	mu         sync.Mutex
	storage    map[int64]Order
	byTracking map[string]int64
	nextID     int64
	stock      catalog.StockReserver
}

func NewInMemoryRepository(stock catalog.StockReserver, seed []Order) *InMemoryRepository {
	r := &InMemoryRepository{
		storage:    make(map[int64]Order, len(seed)),
		byTracking: make(map[string]int64, len(seed)),
		nextID:     1,
		stock:      stock,
	}
	for _, o := range seed {
		if o.ID == 0 {
			o.ID = r.nextID
		}
		if o.ID >= r.nextID {
			r.nextID = o.ID + 1
		}
		r.storage[o.ID] = o.clone()
		r.byTracking[o.TrackingID] = o.ID
	}
	return r
}

func (r *InMemoryRepository) Create(ctx context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byTracking[o.TrackingID]; taken {
		return Order{}, errDuplicateTracking
	}
	if r.stock != nil {
		if err := r.stock.ReserveStock(ctx, stockRequests(o.Lines)); err != nil {
			return Order{}, err
		}
	}
	o.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	r.storage[o.ID] = o.clone()
	r.byTracking[o.TrackingID] = o.ID
	return o.clone(), nil
}

func (r *InMemoryRepository) Get(_ context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.storage[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o.clone(), nil
}

func (r *InMemoryRepository) GetByTracking(_ context.Context, trackingID string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byTracking[trackingID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return r.storage[id].clone(), nil
}

func (r *InMemoryRepository) List(_ context.Context, f Filter) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]Order, 0)
	for _, o := range r.storage {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.ShopID != 0 && o.ShopID != f.ShopID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
			continue
		}
		matched = append(matched, o.clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if f.Offset >= len(matched) {
		return []Order{}, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (r *InMemoryRepository) Transition(_ context.Context, id int64, fn func(o *Order) error) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.storage[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	o := current.clone()
	if err := fn(&o); err != nil {
		return Order{}, err
	}
	r.storage[id] = o.clone()
	return o, nil
}

func (r *InMemoryRepository) Stats(_ context.Context, shopID int64, since time.Time) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]statusTotal, 0)
	for _, o := range r.storage {
		if o.ShopID != shopID || o.CreatedAt.Before(since) {
			continue
		}
		rows = append(rows, statusTotal{status: o.Status, count: 1, amount: o.FinalAmount})
	}
	return summarize(shopID, rows), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.storage[id]
	if !ok {
		return ErrOrderNotFound
	}
	delete(r.storage, id)
	delete(r.byTracking, o.TrackingID)
	return nil
}

type statusTotal struct {
	status Status
	count  int
	amount decimal.Decimal
}

// summarize folds per-status counts and sums into Stats.
func summarize(shopID int64, rows []statusTotal) Stats {
	s := Stats{ShopID: shopID, Revenue: decimal.Zero, CountByStatus: map[Status]int{}}
	for _, row := range rows {
		s.OrderCount += row.count
		s.CountByStatus[row.status] += row.count
		if row.status == StatusCancelled || row.status == StatusRefunded {
			continue
		}
		s.Revenue = s.Revenue.Add(row.amount)
	}
	return s
}
