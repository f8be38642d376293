package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront-backend/internal/variant"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusOutOfStock Status = "out_of_stock"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusOutOfStock:
		return true
	}
	return false
}

// Product is a point-in-time snapshot of a catalog entry. The pipeline only
// reads products; they are mutated through catalog management.
type Product struct {
	ID              int64           `json:"productId"`
	ShopID          int64           `json:"shopId"`
	CategoryIDs     []int64         `json:"categoryIds"`
	Name            string          `json:"productName"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	StockQuantity   int             `json:"stockQuantity"`
	Status          Status          `json:"status"`
	Variants        []Variant       `json:"variants"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Variant is a purchasable configuration of a product. ID is assigned once at
// creation and never reused; Position is only the display order.
type Variant struct {
	ID              string            `json:"variantId"`
	Position        int               `json:"position"`
	Attributes      map[string]string `json:"attributes"`
	Price           decimal.Decimal   `json:"price"`
	DiscountPercent decimal.Decimal   `json:"discountPercent"`
	StockQuantity   int               `json:"stockQuantity"`
	IsDefault       bool              `json:"isDefault"`
}

// Variant looks a variant up by its stable id.
func (p Product) Variant(id string) (Variant, bool) {
	if id == "" {
		return Variant{}, false
	}
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// VariantAt returns the variant currently at display index i.
func (p Product) VariantAt(i int) (Variant, bool) {
	if i < 0 || i >= len(p.Variants) {
		return Variant{}, false
	}
	return p.Variants[i], true
}

// DefaultVariant returns the variant flagged as default, if any.
func (p Product) DefaultVariant() (Variant, bool) {
	for _, v := range p.Variants {
		if v.IsDefault {
			return v, true
		}
	}
	return Variant{}, false
}

// Available reports the stock that backs a line for this product and variant.
// An unknown variant id has no stock.
func (p Product) Available(variantID string) int {
	if variantID == "" {
		return p.StockQuantity
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return 0
	}
	return v.StockQuantity
}

// AttributeSets lists variant attributes in variant order, the shape the
// variant resolver works on.
func (p Product) AttributeSets() []variant.Attributes {
	out := make([]variant.Attributes, len(p.Variants))
	for i, v := range p.Variants {
		out[i] = v.Attributes
	}
	return out
}

// StockRequest asks for qty units of a product, or of one of its variants.
type StockRequest struct {
	ProductID int64
	VariantID string
	Quantity  int
}
