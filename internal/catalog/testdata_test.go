package catalog

import "github.com/shopspring/decimal"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// shirt has three variants; the plain mug has none.
func seedProducts() []Product {
	return []Product{
		{
			ID: 1, ShopID: 10, Name: "Shirt", Price: dec("20"), DiscountPercent: dec("0"),
			Status: StatusActive,
			Variants: []Variant{
				{ID: "v-red-s", Position: 0, Attributes: map[string]string{"color": "red", "size": "S"}, Price: dec("20"), DiscountPercent: dec("0"), StockQuantity: 4, IsDefault: true},
				{ID: "v-red-m", Position: 1, Attributes: map[string]string{"color": "red", "size": "M"}, Price: dec("22"), DiscountPercent: dec("10"), StockQuantity: 2},
				{ID: "v-blue-m", Position: 2, Attributes: map[string]string{"color": "blue", "size": "M"}, Price: dec("22"), DiscountPercent: dec("0"), StockQuantity: 0},
			},
		},
		{ID: 2, ShopID: 10, Name: "Mug", Price: dec("15"), DiscountPercent: dec("0"), StockQuantity: 3, Status: StatusActive},
		{ID: 3, ShopID: 20, Name: "Poster", Price: dec("5"), DiscountPercent: dec("0"), StockQuantity: 9, Status: StatusInactive},
	}
}
