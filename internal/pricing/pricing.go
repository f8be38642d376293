// Package pricing resolves what a catalog line costs. Money is decimal end to
// end; Round is applied once per computed total.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront-backend/internal/catalog"
)

var hundred = decimal.NewFromInt(100)

// Quote is the priced view of quantity units of one product or variant.
type Quote struct {
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	FinalUnitPrice  decimal.Decimal `json:"finalUnitPrice"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// EffectivePrice is the variant price when variantID names a variant of p,
// otherwise the base price.
func EffectivePrice(p catalog.Product, variantID string) decimal.Decimal {
	if v, ok := p.Variant(variantID); ok {
		return v.Price
	}
	return p.Price
}

// EffectiveDiscount follows the same variant-first fallback as EffectivePrice.
func EffectiveDiscount(p catalog.Product, variantID string) decimal.Decimal {
	if v, ok := p.Variant(variantID); ok {
		return v.DiscountPercent
	}
	return p.DiscountPercent
}

// FinalUnitPrice is price × (1 − discount/100), unrounded.
func FinalUnitPrice(price, discountPercent decimal.Decimal) decimal.Decimal {
	return price.Mul(hundred.Sub(discountPercent)).Div(hundred)
}

// Subtotal is the rounded total for quantity units at unitPrice.
func Subtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return Round(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// Percent returns amount × rate/100, unrounded.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidDiscount reports whether d is within [0, 100].
func ValidDiscount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}

// QuoteLine prices quantity units of p (or of its variant variantID).
func QuoteLine(p catalog.Product, variantID string, quantity int) Quote {
	price := EffectivePrice(p, variantID)
	discount := EffectiveDiscount(p, variantID)
	final := FinalUnitPrice(price, discount)
	return Quote{
		UnitPrice:       price,
		DiscountPercent: discount,
		FinalUnitPrice:  Round(final),
		Subtotal:        Subtotal(final, quantity),
	}
}
