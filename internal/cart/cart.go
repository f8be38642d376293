package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront-backend/internal/catalog"
	"github.com/wichananm65/storefront-backend/internal/pricing"
)

// MaxQuantity bounds the quantity accepted by a single add or set.
const MaxQuantity = 99

// Key scopes a cart to one shopper in one shop.
type Key struct {
	ShopID int64  `json:"shopId"`
	UserID string `json:"userId"`
}

func (k Key) less(o Key) bool {
	if k.ShopID != o.ShopID {
		return k.ShopID < o.ShopID
	}
	return k.UserID < o.UserID
}

// Line is one stored cart entry. An empty VariantID means the base product.
type Line struct {
	ProductID int64  `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	Key
	Lines     []Line    `json:"lines"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Cart) find(productID int64, variantID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID && l.VariantID == variantID {
			return i
		}
	}
	return -1
}

// add increments the matching line or appends a new one.
func (c *Cart) add(l Line) {
	if i := c.find(l.ProductID, l.VariantID); i >= 0 {
		c.Lines[i].Quantity += l.Quantity
		return
	}
	c.Lines = append(c.Lines, l)
}

func (c *Cart) remove(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

func (c Cart) clone() Cart {
	if c.Lines != nil {
		c.Lines = append([]Line(nil), c.Lines...)
	}
	return c
}

// ViewLine is a stored line joined with the current catalog and priced.
type ViewLine struct {
	ProductID int64            `json:"productId"`
	VariantID string           `json:"variantId,omitempty"`
	Quantity  int              `json:"quantity"`
	Product   catalog.Product  `json:"product"`
	Variant   *catalog.Variant `json:"variant,omitempty"`
	pricing.Quote
}

// View is the priced projection of a cart. Lines whose product no longer
// exists in the shop are left out of the view but stay in storage.
type View struct {
	ShopID      int64           `json:"shopId"`
	UserID      string          `json:"userId"`
	Lines       []ViewLine      `json:"lines"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Version     int64           `json:"version"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ProblemCode string

const (
	ProblemMissingProduct    ProblemCode = "missing_product"
	ProblemInactiveProduct   ProblemCode = "inactive_product"
	ProblemMissingVariant    ProblemCode = "missing_variant"
	ProblemInsufficientStock ProblemCode = "insufficient_stock"
)

// Problem is one line that cannot be checked out as it stands.
type Problem struct {
	Code      ProblemCode `json:"code"`
	ProductID int64       `json:"productId"`
	VariantID string      `json:"variantId,omitempty"`
	Requested int         `json:"requested"`
	Available int         `json:"available"`
	Message   string      `json:"message"`
}

// Validation reports problems and the lines the cart would hold once they
// are corrected.
type Validation struct {
	Valid     bool      `json:"valid"`
	Problems  []Problem `json:"problems"`
	Corrected []Line    `json:"corrected"`
}
