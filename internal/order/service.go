package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wichananm65/storefront-backend/internal/address"
	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/cart"
	"github.com/wichananm65/storefront-backend/internal/logging"
	"github.com/wichananm65/storefront-backend/internal/pricing"
	"github.com/wichananm65/storefront-backend/internal/validation"
)

const (
	trackingAttempts = 3
	maxStatsDays     = 365
)

// Carts is the part of the cart engine checkout depends on.
type Carts interface {
	Validate(ctx context.Context, key cart.Key) (cart.Validation, error)
	Get(ctx context.Context, key cart.Key) (cart.View, error)
	Consume(ctx context.Context, key cart.Key, ordered []cart.Line) error
}

// AddressBook resolves a saved address of a user.
type AddressBook interface {
	Get(ctx context.Context, userID string, id int64) (address.Address, error)
}

// ProductCache drops cached products whose stock an order changed.
type ProductCache interface {
	Invalidate(ids ...int64)
}

// Service provides business logic for orders.
type Service struct {
	repo          Repository
	carts         Carts
	addresses     AddressBook
	cache         ProductCache
	charges       Charges
	log           *zap.Logger
	now           func() time.Time
	newTrackingID func(time.Time) string
}

// NewService wires the order engine. carts, addresses and cache may be nil
// when the caller only uses Create and the query side.
func NewService(repo Repository, carts Carts, addresses AddressBook, cache ProductCache, log *zap.Logger) *Service {
	return &Service{
		repo:          repo,
		carts:         carts,
		addresses:     addresses,
		cache:         cache,
		log:           logging.OrNop(log),
		now:           func() time.Time { return time.Now().UTC() },
		newTrackingID: NewTrackingID,
	}
}

// WithCharges sets the tax rate and shipping cost checkout applies.
func (s *Service) WithCharges(c Charges) *Service {
	s.charges = c
	return s
}

// Create prices and freezes the given lines into a pending order. Stock is
// reserved by the repository in the same step that stores the order.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if err := checkCreate(in); err != nil {
		return Order{}, err
	}
	shipping, err := checkAddress("shippingAddress", in.ShippingAddress)
	if err != nil {
		return Order{}, err
	}
	var billing *Address
	if in.BillingAddress != nil {
		if billing, err = checkAddress("billingAddress", in.BillingAddress); err != nil {
			return Order{}, err
		}
	}

	o := Order{
		UserID:          in.UserID,
		ShopID:          in.ShopID,
		Lines:           make([]Line, 0, len(in.Lines)),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Notes:           strings.TrimSpace(in.Notes),
		DiscountAmount:  pricing.Round(in.DiscountAmount),
		ShippingAmount:  pricing.Round(in.ShippingCost),
	}
	total := decimal.Zero
	for _, vl := range in.Lines {
		o.Lines = append(o.Lines, freeze(vl))
		total = total.Add(vl.Subtotal)
	}
	o.TotalAmount = pricing.Round(total)
	o.TaxAmount = pricing.Round(pricing.Percent(o.TotalAmount, in.TaxRate))
	o.FinalAmount = pricing.Round(o.TotalAmount.Add(o.TaxAmount).Add(o.ShippingAmount).Sub(o.DiscountAmount))
	if o.FinalAmount.IsNegative() {
		return Order{}, apperr.Field("discountAmount", "exceeds the order total")
	}

	created, err := s.store(ctx, o)
	if err != nil {
		return Order{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(lineProductIDs(created.Lines)...)
	}
	s.log.Info("order created",
		zap.Int64("order_id", created.ID),
		zap.String("tracking_id", created.TrackingID),
		zap.Int64("shop_id", created.ShopID),
		zap.String("user_id", created.UserID),
		zap.String("final_amount", created.FinalAmount.String()),
	)
	return created, nil
}

// store inserts o, minting a new tracking id whenever the previous one
// collided.
func (s *Service) store(ctx context.Context, o Order) (Order, error) {
	var err error
	for attempt := 0; attempt < trackingAttempts; attempt++ {
		o.TrackingID = s.newTrackingID(s.now())
		var created Order
		created, err = s.repo.Create(ctx, o)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, errDuplicateTracking) {
			return Order{}, err
		}
		s.log.Warn("tracking id collision", zap.String("tracking_id", o.TrackingID), zap.Int("attempt", attempt+1))
	}
	return Order{}, fmt.Errorf("allocate tracking id: %w", err)
}

// Checkout turns the cart at key into an order. A cart with problems is
// rejected with the problem list. Once the order exists the ordered
// quantities are taken out of the cart.
func (s *Service) Checkout(ctx context.Context, key cart.Key, in CheckoutInput) (Order, error) {
	if s.carts == nil {
		return Order{}, errors.New("checkout requires a cart engine")
	}
	shipping := in.ShippingAddress
	if shipping == nil && in.ShippingAddressID > 0 {
		if s.addresses == nil {
			return Order{}, apperr.Field("shippingAddressId", "saved addresses are not available")
		}
		saved, err := s.addresses.Get(ctx, key.UserID, in.ShippingAddressID)
		if err != nil {
			return Order{}, err
		}
		shipping = &saved.Postal
	}

	v, err := s.carts.Validate(ctx, key)
	if err != nil {
		return Order{}, err
	}
	if !v.Valid {
		e := apperr.Conflict("cart needs attention before checkout")
		e.Details = v.Problems
		return Order{}, e
	}
	view, err := s.carts.Get(ctx, key)
	if err != nil {
		return Order{}, err
	}
	if len(view.Lines) == 0 {
		return Order{}, apperr.Field("lines", "cart is empty")
	}

	o, err := s.Create(ctx, CreateInput{
		UserID:          key.UserID,
		ShopID:          key.ShopID,
		Lines:           view.Lines,
		ShippingAddress: shipping,
		BillingAddress:  in.BillingAddress,
		PaymentMethod:   in.PaymentMethod,
		Notes:           in.Notes,
		TaxRate:         s.charges.TaxRate,
		ShippingCost:    s.charges.ShippingCost,
	})
	if err != nil {
		return Order{}, err
	}
	if err := s.carts.Consume(ctx, key, orderedLines(view.Lines)); err != nil {
		s.log.Warn("consume cart after checkout",
			zap.Int64("order_id", o.ID),
			zap.Int64("shop_id", key.ShopID),
			zap.String("user_id", key.UserID),
			zap.Error(err),
		)
	}
	return o, nil
}

// UpdateStatus moves an order along the status machine.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status, note string) (Order, error) {
	if !to.Valid() {
		return Order{}, apperr.Field("status", "is not a known status")
	}
	o, err := s.repo.Transition(ctx, id, func(o *Order) error {
		return ApplyStatus(o, to, note, s.now())
	})
	if err != nil {
		return Order{}, err
	}
	s.log.Info("order status changed", zap.Int64("order_id", id), zap.String("status", string(to)))
	return o, nil
}

// Cancel lets the owner of an order cancel it while that is still allowed.
// Orders of other users read as not found.
func (s *Service) Cancel(ctx context.Context, id int64, userID, reason string) (Order, error) {
	o, err := s.repo.Transition(ctx, id, func(o *Order) error {
		if o.UserID != userID {
			return ErrOrderNotFound
		}
		note := ""
		if r := strings.TrimSpace(reason); r != "" {
			note = "cancelled by customer: " + r
		}
		return ApplyStatus(o, StatusCancelled, note, s.now())
	})
	if err != nil {
		return Order{}, err
	}
	s.log.Info("order cancelled", zap.Int64("order_id", id), zap.String("user_id", userID))
	return o, nil
}

// UpdatePaymentStatus records a payment outcome. method, when set, replaces
// the stored payment method.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id int64, to PaymentStatus, method string) (Order, error) {
	if !to.Valid() {
		return Order{}, apperr.Field("paymentStatus", "is not a known payment status")
	}
	o, err := s.repo.Transition(ctx, id, func(o *Order) error {
		return ApplyPayment(o, to, strings.TrimSpace(method), s.now())
	})
	if err != nil {
		return Order{}, err
	}
	s.log.Info("order payment changed",
		zap.Int64("order_id", id),
		zap.String("payment_status", string(to)),
		zap.String("status", string(o.Status)),
	)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	if id <= 0 {
		return Order{}, ErrOrderNotFound
	}
	return s.repo.Get(ctx, id)
}

// GetForUser returns the order only when userID owns it.
func (s *Service) GetForUser(ctx context.Context, id int64, userID string) (Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) GetByTracking(ctx context.Context, trackingID string) (Order, error) {
	trackingID = strings.ToUpper(strings.TrimSpace(trackingID))
	if trackingID == "" {
		return Order{}, ErrOrderNotFound
	}
	return s.repo.GetByTracking(ctx, trackingID)
}

// List applies the default limit and caps it at MaxListLimit.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Offset < 0 {
		return nil, apperr.Field("offset", "must not be negative")
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, apperr.Field("status", fmt.Sprintf("%q is not a known status", st))
		}
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return s.repo.List(ctx, f)
}

// Stats aggregates the orders a shop received in the last days days.
func (s *Service) Stats(ctx context.Context, shopID int64, days int) (Stats, error) {
	if shopID <= 0 {
		return Stats{}, apperr.Field("shopId", "must be a positive number")
	}
	if days < 1 || days > maxStatsDays {
		return Stats{}, apperr.Field("days", fmt.Sprintf("must be between 1 and %d", maxStatsDays))
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	st, err := s.repo.Stats(ctx, shopID, since)
	if err != nil {
		return Stats{}, err
	}
	st.Days = days
	return st, nil
}

// Delete removes an order for good. Only administrators reach this.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrOrderNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("order deleted", zap.Int64("order_id", id))
	return nil
}

func checkCreate(in CreateInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.UserID) == "" {
		fields["userId"] = "is required"
	}
	if in.ShopID <= 0 {
		fields["shopId"] = "must be a positive number"
	}
	if len(in.Lines) == 0 {
		fields["lines"] = "must not be empty"
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		fields["taxRate"] = "must be between 0 and 100"
	}
	if in.ShippingCost.IsNegative() {
		fields["shippingCost"] = "must not be negative"
	}
	if in.DiscountAmount.IsNegative() {
		fields["discountAmount"] = "must not be negative"
	}
	for i, l := range in.Lines {
		if l.Product.ShopID != in.ShopID {
			fields[fmt.Sprintf("lines[%d].productId", i)] = "belongs to another shop"
		}
		if l.Quantity < 1 {
			fields[fmt.Sprintf("lines[%d].quantity", i)] = "must be at least 1"
		}
	}
	if in.ShippingAddress == nil {
		fields["shippingAddress"] = "is required"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid order", fields)
	}
	return nil
}

func orderedLines(lines []cart.ViewLine) []cart.Line {
	out := make([]cart.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, cart.Line{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return out
}

// checkAddress normalizes a and reports its field errors under prefix.
func checkAddress(prefix string, a *Address) (*Address, error) {
	n := address.Normalize(*a)
	if err := validation.Struct(n); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && len(ae.Fields) > 0 {
			fields := make(map[string]string, len(ae.Fields))
			for k, v := range ae.Fields {
				fields[prefix+"."+k] = v
			}
			return nil, apperr.Validation("invalid address", fields)
		}
		return nil, err
	}
	return &n, nil
}

func freeze(vl cart.ViewLine) Line {
	l := Line{
		ProductID:       vl.ProductID,
		VariantID:       vl.VariantID,
		ProductName:     vl.Product.Name,
		Quantity:        vl.Quantity,
		UnitPrice:       vl.UnitPrice,
		DiscountPercent: vl.DiscountPercent,
		Subtotal:        vl.Subtotal,
	}
	if vl.Variant != nil && len(vl.Variant.Attributes) > 0 {
		l.VariantAttributes = make(map[string]string, len(vl.Variant.Attributes))
		for k, v := range vl.Variant.Attributes {
			l.VariantAttributes[k] = v
		}
	}
	return l
}

func lineProductIDs(lines []Line) []int64 {
	seen := make(map[int64]bool, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}
