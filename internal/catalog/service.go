package catalog

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/logging"
	"github.com/wichananm65/storefront-backend/internal/variant"
)

type Service struct {
	repo   Repository
	reader Reader
	cache  *CachedReader
	log    *zap.Logger
}

// NewService reads through cache when it is non-nil. Writes always go to repo
// and evict the written id from cache.
func NewService(repo Repository, cache *CachedReader, log *zap.Logger) *Service {
	s := &Service{repo: repo, reader: repo, cache: cache, log: logging.OrNop(log)}
	if cache != nil {
		s.reader = cache
	}
	return s
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.reader.GetProduct(ctx, id)
}

func (s *Service) List(ctx context.Context, shopID int64) ([]Product, error) {
	return s.repo.List(ctx, shopID)
}

// ListInCategory returns the shop's products tagged with categoryID.
func (s *Service) ListInCategory(ctx context.Context, shopID, categoryID int64) ([]Product, error) {
	all, err := s.repo.List(ctx, shopID)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(all))
	for _, p := range all {
		if slices.Contains(p.CategoryIDs, categoryID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	if p.Status == "" {
		p.Status = StatusActive
	}
	for i := range p.Variants {
		p.Variants[i].ID = uuid.NewString()
	}
	normalizeVariants(p.Variants)
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.log.Info("product created", zap.Int64("shop_id", created.ShopID), zap.Int64("product_id", created.ID))
	return created, nil
}

// Update replaces the product. Variants that carry the id of an existing
// variant keep it; variants without an id get a fresh one.
func (s *Service) Update(ctx context.Context, id int64, p Product) (Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.Status == "" {
		p.Status = existing.Status
	}
	fields := map[string]string{}
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.ID == "" {
			v.ID = uuid.NewString()
			continue
		}
		if _, ok := existing.Variant(v.ID); !ok {
			fields[fmt.Sprintf("variants[%d].variantId", i)] = "does not belong to this product"
		}
	}
	if len(fields) > 0 {
		return Product{}, apperr.Validation("invalid product", fields)
	}
	normalizeVariants(p.Variants)
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	updated, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(id)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	s.log.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// Options is what a product page needs to drive its variant pickers.
type Options struct {
	Keys      []string            `json:"keys"`
	Available map[string][]string `json:"available"`
	Complete  bool                `json:"complete"`
	Variant   *Variant            `json:"variant,omitempty"`
}

// Options projects sel onto the variants of the product. An incomplete or
// unmatched selection is not an error; Variant is simply nil.
func (s *Service) Options(ctx context.Context, productID int64, sel variant.Selection) (Options, error) {
	p, err := s.reader.GetProduct(ctx, productID)
	if err != nil {
		return Options{}, err
	}
	attrs := p.AttributeSets()
	out := Options{
		Keys:      variant.Keys(attrs),
		Available: variant.Available(attrs, sel),
		Complete:  variant.IsComplete(attrs, sel),
	}
	idx, ok := variant.Resolve(attrs, sel)
	if !ok {
		return out, nil
	}
	if idx >= 0 {
		v := p.Variants[idx]
		out.Variant = &v
	}
	return out, nil
}

func (s *Service) invalidate(id int64) {
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
}

func normalizeVariants(vs []Variant) {
	for i := range vs {
		vs[i].Position = i
	}
}

func validateProduct(p Product) error {
	fields := map[string]string{}
	if p.Price.IsNegative() {
		fields["price"] = "must not be negative"
	}
	if !validPercent(p.DiscountPercent) {
		fields["discountPercent"] = "must be between 0 and 100"
	}
	if p.StockQuantity < 0 {
		fields["stockQuantity"] = "must not be negative"
	}
	if !p.Status.Valid() {
		fields["status"] = "must be one of [active inactive out_of_stock]"
	}
	defaults := 0
	for i, v := range p.Variants {
		if v.Price.IsNegative() {
			fields[fmt.Sprintf("variants[%d].price", i)] = "must not be negative"
		}
		if !validPercent(v.DiscountPercent) {
			fields[fmt.Sprintf("variants[%d].discountPercent", i)] = "must be between 0 and 100"
		}
		if v.StockQuantity < 0 {
			fields[fmt.Sprintf("variants[%d].stockQuantity", i)] = "must not be negative"
		}
		if v.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		fields["variants"] = "at most one variant may be the default"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid product", fields)
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

func validPercent(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}
