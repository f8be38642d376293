package category

import (
	"context"
	"strings"

	"github.com/wichananm65/storefront-backend/internal/apperr"
)

// Service provides business logic for categories.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

func (s *Service) List(ctx context.Context, shopID int64) ([]Category, error) {
	if shopID <= 0 {
		return nil, apperr.Field("shopId", "must be a positive number")
	}
	return s.repo.List(ctx, shopID)
}

func (s *Service) Create(ctx context.Context, shopID int64, name string, position int) (Category, error) {
	name = strings.TrimSpace(name)
	fields := map[string]string{}
	if shopID <= 0 {
		fields["shopId"] = "must be a positive number"
	}
	if name == "" {
		fields["categoryName"] = "is required"
	}
	if position < 0 {
		fields["position"] = "must not be negative"
	}
	if len(fields) > 0 {
		return Category{}, apperr.Validation("invalid category", fields)
	}
	return s.repo.Create(ctx, Category{ShopID: shopID, Name: name, Position: position})
}

// Delete removes the category. Products keep the stale id in their category
// list; it simply matches nothing.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrCategoryNotFound
	}
	return s.repo.Delete(ctx, id)
}
