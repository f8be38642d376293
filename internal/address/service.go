package address

import (
	"context"
	"strings"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/validation"
)

// Service orchestrates the address book.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	if userID == "" {
		return nil, apperr.Field("userId", "is required")
	}
	return s.repo.List(ctx, userID)
}

// Get satisfies the address lookup used by checkout.
func (s *Service) Get(ctx context.Context, userID string, id int64) (Address, error) {
	if userID == "" || id <= 0 {
		return Address{}, ErrNotFound
	}
	return s.repo.Get(ctx, userID, id)
}

func (s *Service) Add(ctx context.Context, userID, label string, p Postal) (Address, error) {
	if userID == "" {
		return Address{}, apperr.Field("userId", "is required")
	}
	p = Normalize(p)
	if err := validation.Struct(p); err != nil {
		return Address{}, err
	}
	return s.repo.Create(ctx, Address{UserID: userID, Label: strings.TrimSpace(label), Postal: p})
}

func (s *Service) Update(ctx context.Context, userID string, id int64, label string, p Postal) (Address, error) {
	if userID == "" || id <= 0 {
		return Address{}, ErrNotFound
	}
	p = Normalize(p)
	if err := validation.Struct(p); err != nil {
		return Address{}, err
	}
	return s.repo.Update(ctx, Address{ID: id, UserID: userID, Label: strings.TrimSpace(label), Postal: p})
}

func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	if userID == "" || id <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, userID, id)
}

// Normalize trims every field and upper-cases the country code.
func Normalize(p Postal) Postal {
	p.Name = strings.TrimSpace(p.Name)
	p.Line1 = strings.TrimSpace(p.Line1)
	p.Line2 = strings.TrimSpace(p.Line2)
	p.City = strings.TrimSpace(p.City)
	p.Region = strings.TrimSpace(p.Region)
	p.PostalCode = strings.TrimSpace(p.PostalCode)
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	p.Phone = strings.TrimSpace(p.Phone)
	return p
}
