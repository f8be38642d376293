package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront-backend/internal/address"
	"github.com/wichananm65/storefront-backend/internal/cart"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

func (s Status) Valid() bool {
	_, ok := statusPredecessors[s]
	return ok || s == StatusPending
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	_, ok := paymentPredecessors[s]
	return ok || s == PaymentPending
}

// Address is the postal address copied onto an order.
type Address = address.Postal

// Line is an order line frozen at purchase time. Later catalog changes never
// touch it.
type Line struct {
	ProductID         int64             `json:"productId"`
	VariantID         string            `json:"variantId,omitempty"`
	ProductName       string            `json:"productName"`
	VariantAttributes map[string]string `json:"variantAttributes,omitempty"`
	Quantity          int               `json:"quantity"`
	UnitPrice         decimal.Decimal   `json:"unitPrice"`
	DiscountPercent   decimal.Decimal   `json:"discountPercent"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
}

type Order struct {
	ID              int64           `json:"orderId"`
	UserID          string          `json:"userId"`
	ShopID          int64           `json:"shopId"`
	TrackingID      string          `json:"trackingId"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	TaxAmount       decimal.Decimal `json:"taxAmount"`
	ShippingAmount  decimal.Decimal `json:"shippingAmount"`
	FinalAmount     decimal.Decimal `json:"finalAmount"`
	Lines           []Line          `json:"lines"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	ShippingAddress *Address        `json:"shippingAddress"`
	BillingAddress  *Address        `json:"billingAddress,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	AdminNotes      string          `json:"adminNotes,omitempty"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CreateInput is everything needed to place an order from priced cart lines.
type CreateInput struct {
	UserID          string
	ShopID          int64
	Lines           []cart.ViewLine
	ShippingAddress *Address
	BillingAddress  *Address
	PaymentMethod   string
	Notes           string
	TaxRate         decimal.Decimal
	ShippingCost    decimal.Decimal
	DiscountAmount  decimal.Decimal
}

// CheckoutInput is what the shopper supplies at checkout. Lines come from
// the cart and charges from the service. A saved address id may stand in
// for ShippingAddress.
type CheckoutInput struct {
	ShippingAddress   *Address
	ShippingAddressID int64
	BillingAddress    *Address
	PaymentMethod     string
	Notes             string
}

// Charges are the shop-side amounts checkout adds to every order.
type Charges struct {
	TaxRate      decimal.Decimal
	ShippingCost decimal.Decimal
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	UserID   string
	ShopID   int64
	Statuses []Status
	Limit    int
	Offset   int
}

// Stats aggregates a shop's orders over a trailing window. Revenue leaves out
// cancelled and refunded orders.
type Stats struct {
	ShopID        int64           `json:"shopId"`
	Days          int             `json:"days"`
	OrderCount    int             `json:"orderCount"`
	Revenue       decimal.Decimal `json:"revenue"`
	CountByStatus map[Status]int  `json:"countByStatus"`
}

func (o Order) clone() Order {
	if o.Lines != nil {
		lines := make([]Line, len(o.Lines))
		for i, l := range o.Lines {
			if l.VariantAttributes != nil {
				attrs := make(map[string]string, len(l.VariantAttributes))
				for k, v := range l.VariantAttributes {
					attrs[k] = v
				}
				l.VariantAttributes = attrs
			}
			lines[i] = l
		}
		o.Lines = lines
	}
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		o.ShippingAddress = &a
	}
	if o.BillingAddress != nil {
		a := *o.BillingAddress
		o.BillingAddress = &a
	}
	return o
}
